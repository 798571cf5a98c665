// Package steamweb implements workshop.Session over the public Steam Web API.
//
// Item details come from ISteamRemoteStorage/GetPublishedFileDetails and the
// item's file is fetched from its file_url. Both run on background
// goroutines and report back through a FIFO drained by Session.Pump, which
// mirrors the client library's callback model: nothing is delivered to the
// caller unless it pumps.
package steamweb
