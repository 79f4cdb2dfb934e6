package scraper

import (
	"regexp"
	"strings"
)

// BlockType classifies why a results page had no cards
type BlockType string

const (
	BlockNone      BlockType = "none"
	BlockCaptcha   BlockType = "captcha"
	BlockBotWall   BlockType = "bot_wall"
	BlockHTTPError BlockType = "http_error"
	BlockNoResults BlockType = "no_results"
)

// Diagnosis explains an empty results page
type Diagnosis struct {
	Type    BlockType
	Score   float64
	Reasons []string
}

// Blocked returns true if the page looks like an anti-bot interstitial
func (d Diagnosis) Blocked() bool {
	return d.Type == BlockCaptcha || d.Type == BlockBotWall || d.Type == BlockHTTPError
}

func (d Diagnosis) String() string {
	if len(d.Reasons) == 0 {
		return string(d.Type)
	}
	return string(d.Type) + ": " + strings.Join(d.Reasons, "; ")
}

// BotDetector detects bot walls and CAPTCHAs on marketplace pages
type BotDetector struct {
	botPatterns       []*regexp.Regexp
	captchaPatterns   []*regexp.Regexp
	blockPatterns     []*regexp.Regexp
	noResultsPatterns []*regexp.Regexp
}

// NewBotDetector creates a new bot detector
func NewBotDetector() *BotDetector {
	return &BotDetector{
		botPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)not a robot`),
			regexp.MustCompile(`(?i)are you a human`),
			regexp.MustCompile(`(?i)automated access`),
			regexp.MustCompile(`(?i)unusual traffic`),
			regexp.MustCompile(`(?i)checking your browser`),
			regexp.MustCompile(`(?i)too many requests`),
			regexp.MustCompile(`(?i)site is overloaded`),
		},
		captchaPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)captcha`),
			regexp.MustCompile(`(?i)enter the characters you see`),
			regexp.MustCompile(`(?i)type the characters you see`),
			regexp.MustCompile(`(?i)verify you are human`),
		},
		blockPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)403 forbidden`),
			regexp.MustCompile(`(?i)429 too many requests`),
			regexp.MustCompile(`(?i)503 service unavailable`),
			regexp.MustCompile(`(?i)something went wrong`),
		},
		noResultsPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)no results for`),
			regexp.MustCompile(`(?i)sorry, no results found`),
			regexp.MustCompile(`(?i)did not match any products`),
		},
	}
}

// Diagnose scores the page text for anti-bot and empty-result signals
func (bd *BotDetector) Diagnose(pageContent string) Diagnosis {
	content := strings.ToLower(pageContent)

	score := 0.0
	var reasons []string
	captcha, httpError := false, false

	for _, pattern := range bd.captchaPatterns {
		if pattern.MatchString(content) {
			score += 0.5
			captcha = true
			reasons = append(reasons, "CAPTCHA detected: "+pattern.String())
		}
	}

	for _, pattern := range bd.botPatterns {
		if pattern.MatchString(content) {
			score += 0.3
			reasons = append(reasons, pattern.String())
		}
	}

	for _, pattern := range bd.blockPatterns {
		if pattern.MatchString(content) {
			score += 0.4
			httpError = true
			reasons = append(reasons, "HTTP error: "+pattern.String())
		}
	}

	if len(content) < 1000 && score > 0 {
		score += 0.2
		reasons = append(reasons, "Very short content with bot indicators")
	}

	if score > 1.0 {
		score = 1.0
	}

	switch {
	case captcha:
		return Diagnosis{Type: BlockCaptcha, Score: score, Reasons: reasons}
	case score > 0.3 && httpError:
		return Diagnosis{Type: BlockHTTPError, Score: score, Reasons: reasons}
	case score > 0.3:
		return Diagnosis{Type: BlockBotWall, Score: score, Reasons: reasons}
	}

	for _, pattern := range bd.noResultsPatterns {
		if pattern.MatchString(content) {
			return Diagnosis{Type: BlockNoResults, Score: score, Reasons: []string{pattern.String()}}
		}
	}

	return Diagnosis{Type: BlockNone, Score: score, Reasons: reasons}
}
