// Package analytics classifies visitors by user agent. The bot list here is
// the only one in leadpress: server-side render counting and the SSR
// redirect script are both generated from it.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Bot is a known crawler. Pattern is matched case-insensitively as a
// substring of the User-Agent.
type Bot struct {
	Pattern string
	Name    string
	// AI marks assistants and model-training crawlers.
	AI bool
}

// BotPatterns lists known crawlers, most specific first. The generic
// patterns at the end only name a bot when nothing better matched.
var BotPatterns = []Bot{
	{"gptbot", "GPTBot", true},
	{"chatgpt-user", "ChatGPT", true},
	{"oai-searchbot", "OpenAI Search", true},
	{"claudebot", "ClaudeBot", true},
	{"claude-web", "Claude", true},
	{"anthropic-ai", "Anthropic", true},
	{"perplexitybot", "PerplexityBot", true},
	{"perplexity-user", "Perplexity", true},
	{"google-extended", "Google-Extended", true},
	{"ccbot", "Common Crawl", true},
	{"bytespider", "Bytespider", true},
	{"cohere-ai", "Cohere", true},
	{"youbot", "You.com", true},
	{"meta-externalagent", "Meta AI", true},
	{"amazonbot", "Amazonbot", true},
	{"applebot", "Applebot", false},
	{"googlebot", "Googlebot", false},
	{"bingbot", "Bingbot", false},
	{"yandex", "Yandex", false},
	{"baidu", "Baidu", false},
	{"duckduckbot", "DuckDuckBot", false},
	{"facebookexternalhit", "Facebook", false},
	{"twitterbot", "Twitterbot", false},
	{"linkedinbot", "LinkedIn", false},
	{"slackbot", "Slack", false},
	{"discordbot", "Discord", false},
	{"whatsapp", "WhatsApp", false},
	{"ahrefsbot", "Ahrefs", false},
	{"semrushbot", "SEMrush", false},
	{"mj12bot", "Majestic", false},
	{"dotbot", "Moz", false},
	{"slurp", "Yahoo Slurp", false},
	{"crawler", "Generic Crawler", false},
	{"spider", "Generic Spider", false},
	{"crawl", "Generic Crawler", false},
	{"scrape", "Generic Scraper", false},
	{"bot", "Other Bot", false},
}

// Match returns the first bot whose pattern occurs in ua.
func Match(ua string) (Bot, bool) {
	ua = strings.ToLower(ua)
	for _, b := range BotPatterns {
		if strings.Contains(ua, b.Pattern) {
			return b, true
		}
	}
	return Bot{}, false
}

// IsBot checks if the User-Agent is likely a bot/crawler.
func IsBot(ua string) bool {
	_, ok := Match(ua)
	return ok
}

// BotName extracts the bot name from a User-Agent string, or "Unknown".
func BotName(ua string) string {
	if b, ok := Match(ua); ok {
		return b.Name
	}
	return "Unknown"
}

// ClientClass buckets ua for metrics: "ai", "crawler" or "browser".
func ClientClass(ua string) string {
	b, ok := Match(ua)
	switch {
	case !ok:
		return "browser"
	case b.AI:
		return "ai"
	}
	return "crawler"
}

// BotRegexSource returns the bot list as a regular expression source
// usable by both Go's regexp and JavaScript's RegExp, to be compiled
// case-insensitively.
func BotRegexSource() string {
	parts := make([]string, len(BotPatterns))
	for i, b := range BotPatterns {
		parts[i] = regexp.QuoteMeta(b.Pattern)
	}
	return strings.Join(parts, "|")
}

// HashIP creates a salted SHA-256 hash of an IP address for logs.
func HashIP(salt, ip string) string {
	h := sha256.New()
	h.Write([]byte(salt + ip))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
