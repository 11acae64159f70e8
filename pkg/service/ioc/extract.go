// Package ioc extracts indicators of compromise from free text.
package ioc

import (
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	model "github.com/secmon-lab/bastion/pkg/domain/model/ioc"
)

var (
	urlPattern    = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'` + "`" + `]+`)
	emailPattern  = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,63}\b`)
	ipv4Pattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	domainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}\b`)
	hashPattern   = regexp.MustCompile(`\b(?:[a-fA-F0-9]{64}|[a-fA-F0-9]{40}|[a-fA-F0-9]{32})\b`)

	refanger = strings.NewReplacer(
		"hxxps://", "https://",
		"hxxp://", "http://",
		"[.]", ".",
		"(.)", ".",
		"[dot]", ".",
		"[:]", ":",
		"[@]", "@",
	)
)

// Bare words that look like domains but are file names.
var fileExtensions = map[string]struct{}{
	"exe": {}, "dll": {}, "zip": {}, "rar": {}, "txt": {}, "png": {}, "jpg": {},
	"jpeg": {}, "gif": {}, "pdf": {}, "doc": {}, "docx": {}, "js": {}, "json": {},
	"md": {}, "go": {}, "py": {}, "mp4": {}, "webp": {}, "scr": {}, "bat": {},
}

type collector struct {
	seen   map[string]struct{}
	values []string
}

func newCollector() *collector {
	return &collector{seen: map[string]struct{}{}}
}

func (c *collector) add(v string) {
	if v == "" {
		return
	}
	if _, ok := c.seen[v]; ok {
		return
	}
	c.seen[v] = struct{}{}
	c.values = append(c.values, v)
}

// Extract returns the indicators found in text. Defanged notation such as
// hxxp:// and [.] is accepted. Values keep their original case and each kind
// is deduplicated in order of first appearance.
func Extract(text string) model.Set {
	text = refanger.Replace(text)

	urls, ips, domains, emails, hashes := newCollector(), newCollector(), newCollector(), newCollector(), newCollector()

	for _, raw := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(raw, ".,;:!?)]}>'\"")
		urls.add(u)

		parsed, err := url.Parse(u)
		if err != nil {
			continue
		}
		host := parsed.Hostname()
		if addr, err := netip.ParseAddr(host); err == nil {
			ips.add(addr.String())
		} else if host != "" {
			domains.add(host)
		}
	}

	// URLs and e-mail addresses are removed before matching bare tokens so
	// their parts are not counted twice.
	rest := urlPattern.ReplaceAllString(text, " ")

	for _, email := range emailPattern.FindAllString(rest, -1) {
		emails.add(email)
	}
	rest = emailPattern.ReplaceAllString(rest, " ")

	for _, candidate := range ipv4Pattern.FindAllString(rest, -1) {
		addr, err := netip.ParseAddr(candidate)
		if err != nil || !addr.Is4() {
			continue
		}
		ips.add(addr.String())
	}
	rest = ipv4Pattern.ReplaceAllString(rest, " ")

	for _, candidate := range domainPattern.FindAllString(rest, -1) {
		tld := candidate[strings.LastIndex(candidate, ".")+1:]
		if _, isFile := fileExtensions[strings.ToLower(tld)]; isFile {
			continue
		}
		domains.add(candidate)
	}

	for _, h := range hashPattern.FindAllString(rest, -1) {
		hashes.add(h)
	}

	return model.Set{
		URLs:    urls.values,
		IPs:     ips.values,
		Domains: domains.values,
		Emails:  emails.values,
		Hashes:  hashes.values,
	}
}
