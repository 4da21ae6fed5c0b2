package crawler

import "testing"

func TestParseRobotsHonorsWildcardGroupOnly(t *testing.T) {
	body := `
User-agent: Googlebot
Disallow: /private

User-agent: *
Disallow: /admin
Allow: /admin/public
Crawl-delay: 2
`
	rules := parseRobots(body)
	if len(rules.disallows) != 1 || rules.disallows[0] != "/admin" {
		t.Errorf("expected only the wildcard group's disallow, got %v", rules.disallows)
	}
	if len(rules.allows) != 1 || rules.allows[0] != "/admin/public" {
		t.Errorf("expected wildcard group's allow, got %v", rules.allows)
	}
	if !rules.hasCrawlDly || rules.crawlDelay.Seconds() != 2 {
		t.Errorf("expected crawl-delay of 2s, got %v (set=%v)", rules.crawlDelay, rules.hasCrawlDly)
	}
}

func TestParseRobotsIgnoresCommentsAndBlankLines(t *testing.T) {
	body := `
# a comment
User-agent: *

# another comment
Disallow: /secret
`
	rules := parseRobots(body)
	if len(rules.disallows) != 1 || rules.disallows[0] != "/secret" {
		t.Errorf("expected one disallow, got %v", rules.disallows)
	}
}

func TestPathAllowedDefaultsToAllowedWithNoRules(t *testing.T) {
	if !pathAllowed("/anything", robotsRules{}) {
		t.Error("expected path to be allowed when no rules are present")
	}
}

func TestPathAllowedBareSlashDisallowsEverything(t *testing.T) {
	rules := robotsRules{disallows: []string{"/"}}
	if pathAllowed("/any/path", rules) {
		t.Error("expected bare '/' disallow to block every path")
	}
}

func TestPathAllowedLongestPrefixWins(t *testing.T) {
	rules := robotsRules{
		disallows: []string{"/admin"},
		allows:    []string{"/admin/public"},
	}
	if !pathAllowed("/admin/public/page", rules) {
		t.Error("expected longer Allow prefix to win over shorter Disallow prefix")
	}
	if pathAllowed("/admin/private", rules) {
		t.Error("expected Disallow to apply outside the more specific Allow prefix")
	}
}

func TestPathAllowedTieGoesToAllow(t *testing.T) {
	rules := robotsRules{
		disallows: []string{"/x"},
		allows:    []string{"/x"},
	}
	if !pathAllowed("/x", rules) {
		t.Error("expected a tie between equal-length Allow/Disallow to favor Allow")
	}
}

func TestPathAllowedNoMatchingRuleAllowsPath(t *testing.T) {
	rules := robotsRules{disallows: []string{"/admin"}}
	if !pathAllowed("/public", rules) {
		t.Error("expected unrelated path to be allowed")
	}
}
