package workshop

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ItemURLPrefix is the community page prefix accepted in front of an id.
const ItemURLPrefix = "https://steamcommunity.com/sharedfiles/filedetails/?id="

var itemURLPattern = regexp.MustCompile(regexp.QuoteMeta(ItemURLPrefix))

// ErrInvalidItemID is wrapped by ParseItemID failures.
var ErrInvalidItemID = errors.New("invalid url or workshop id")

// ParseItemID concatenates args and extracts the item id.
//
// The first occurrence of ItemURLPrefix is stripped; the remainder must be a
// base-10 unsigned 64-bit integer. Input without the prefix is parsed as-is.
func ParseItemID(args []string) (uint64, error) {
	raw := strings.Join(args, "")
	if loc := itemURLPattern.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]] + raw[loc[1]:]
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidItemID, raw)
	}
	return id, nil
}
