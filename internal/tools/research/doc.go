// Package research provides the web-research tools the companion bot's
// LLM client can invoke: fetching a page, searching the web, and caching
// the results of both so a repeated question doesn't re-hit the network.
//
// web_fetch dials out through an SSRF-safe transport (ssrf.go) that
// resolves the target host itself and refuses to connect to a loopback,
// RFC1918, link-local, CGNAT, or IPv6 ULA/mapped-private address, closing
// the DNS-rebinding gap between an upfront check and the actual
// connection. web_search sends its request to the configured search
// endpoint through http.DefaultClient, without that guard.
//
// Tools:
//   - web_fetch: fetch a URL and convert its content to markdown
//   - web_search: signed query to a configured search API
//   - research_cache_get/set/clear/stats: in-memory research result cache
package research
