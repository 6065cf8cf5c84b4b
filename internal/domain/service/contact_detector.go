package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"changas/internal/domain/entity"
	"changas/pkg/errors"
)

// Argentine numbers: optional +54, optional mobile 9, optional area code
// (2-4 digits, leading 0, parentheses), optional 15 prefix, then 8 digits
// split 4/4 by an optional space, dot or dash.
const phonePattern = `(?:\+?54[\s.-]?)?(?:9[\s.-]?)?(?:\(?0?\d{2,4}\)?[\s.-]?)?(?:15[\s.-]?)?\d{4}[\s.-]?\d{4}`

const emailPattern = `(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`

const socialKeywordPattern = `(?i)\b(?:whats?app|wsp|wpp|telegram|instagram|insta|facebook|tiktok|twitter|linkedin|discord|snapchat|signal)\b`

const socialDomainPattern = `(?i)\b(?:wa\.me|t\.me|m\.me|fb\.me|fb\.com|facebook\.com|instagram\.com|tiktok\.com|twitter\.com|x\.com|linkedin\.com|discord\.gg|telegram\.me)\b`

const socialHandlePattern = `(?i)(?:^|\s)@[a-z0-9_.]{3,}`

type ContactDetection struct {
	Phone  bool
	Email  bool
	Social bool
}

func (d ContactDetection) Any() bool {
	return d.Phone || d.Email || d.Social
}

func (d ContactDetection) Reasons() entity.CensorReasons {
	return entity.CensorReasons{Phone: d.Phone, Email: d.Email, Social: d.Social}
}

// ContactDetector flags text that shares phone numbers, emails or social
// handles. Matching is heuristic; false positives are accepted.
type ContactDetector struct {
	phone         *regexp.Regexp
	email         *regexp.Regexp
	socialKeyword *regexp.Regexp
	socialDomain  *regexp.Regexp
	socialHandle  *regexp.Regexp
	extraKeywords []string
}

func NewContactDetector(extraKeywords ...string) *ContactDetector {
	var extra []string
	for _, k := range extraKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			extra = append(extra, k)
		}
	}

	return &ContactDetector{
		phone:         regexp.MustCompile(phonePattern),
		email:         regexp.MustCompile(emailPattern),
		socialKeyword: regexp.MustCompile(socialKeywordPattern),
		socialDomain:  regexp.MustCompile(socialDomainPattern),
		socialHandle:  regexp.MustCompile(socialHandlePattern),
		extraKeywords: extra,
	}
}

// Detect runs every detector independently so all reasons are recorded.
func (d *ContactDetector) Detect(text string) (ContactDetection, error) {
	if !utf8.ValidString(text) {
		return ContactDetection{}, errors.Detector("message text is not valid UTF-8", nil)
	}

	return ContactDetection{
		Phone:  d.phone.MatchString(text),
		Email:  d.email.MatchString(text),
		Social: d.hasSocial(text),
	}, nil
}

func (d *ContactDetector) hasSocial(text string) bool {
	if d.socialKeyword.MatchString(text) || d.socialDomain.MatchString(text) || d.socialHandle.MatchString(text) {
		return true
	}

	lower := strings.ToLower(text)
	for _, k := range d.extraKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
