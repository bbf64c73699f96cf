package security

import (
	"regexp"
	"strings"
)

var (
	panPattern      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	nationalPattern = regexp.MustCompile(`^[2-9][0-9]{11}$`)
)

// panHolderTypes are the fourth-character codes issued for PAN holders.
var panHolderTypes = map[byte]string{
	'P': "individual",
	'C': "company",
	'H': "hindu undivided family",
	'F': "firm",
	'A': "association of persons",
	'T': "trust",
	'B': "body of individuals",
	'L': "local authority",
	'J': "artificial juridical person",
	'G': "government",
}

// Confidence scores for identity checks.
const (
	confidenceKnownHolder   = 0.97
	confidenceUnknownHolder = 0.85
)

// verifyIdentity validates the PAN format and the national id checksum. It
// fails closed: malformed input yields Verified=false, never an error.
func verifyIdentity(req IdentityRequest) IdentityResult {
	pan := strings.ToUpper(strings.TrimSpace(req.PANNumber))
	id := strings.ReplaceAll(strings.TrimSpace(req.IDNumber), " ", "")

	if !panPattern.MatchString(pan) {
		return IdentityResult{Message: "PAN number format is invalid"}
	}
	if !nationalPattern.MatchString(id) {
		return IdentityResult{Message: "identity number format is invalid"}
	}
	if !verhoeffValid(id) {
		return IdentityResult{Message: "identity number checksum mismatch"}
	}

	if _, ok := panHolderTypes[pan[3]]; ok {
		return IdentityResult{
			Verified:   true,
			Confidence: confidenceKnownHolder,
			Message:    "identity verified",
		}
	}
	return IdentityResult{
		Verified:   true,
		Confidence: confidenceUnknownHolder,
		Message:    "identity verified with unrecognized PAN holder type",
	}
}

var verhoeffD = [10][10]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
	{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
	{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
	{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
	{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
	{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
	{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
	{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
	{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
}

var verhoeffP = [8][10]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
	{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
	{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
	{9, 4, 5, 8, 1, 0, 2, 7, 6, 3},
	{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
	{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
	{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
}

// verhoeffValid reports whether digits (check digit last) pass the
// Verhoeff checksum.
func verhoeffValid(digits string) bool {
	c := 0
	for i := 0; i < len(digits); i++ {
		ch := digits[len(digits)-1-i]
		if ch < '0' || ch > '9' {
			return false
		}
		c = verhoeffD[c][verhoeffP[i%8][ch-'0']]
	}
	return c == 0
}
