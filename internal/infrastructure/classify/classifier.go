package classify

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledgerguard/copilot/internal/core/domain"
)

// magicSignature maps content sniffing to a MIME type. Magic bytes win
// over the declared MIME type and the filename extension.
type magicSignature struct {
	prefix []byte
	mime   string
}

var magicSignatures = []magicSignature{
	{[]byte("%PDF"), "application/pdf"},
	{[]byte{0x50, 0x4B, 0x03, 0x04}, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{[]byte{0x49, 0x49, 0x2A, 0x00}, "image/tiff"},
	{[]byte{0x4D, 0x4D, 0x00, 0x2A}, "image/tiff"},
}

var extensionMIME = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "sept": "09", "oct": "10",
	"nov": "11", "dec": "12",
}

var (
	monthNamePeriodRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)[\s,.-]+(\d{4})\b`)
	numericPeriodRe   = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})\b`)
	reverseNumericRe  = regexp.MustCompile(`\b(\d{1,2})[-/](\d{4})\b`)
)

// Classifier assigns document type, category, subcategory and tax
// period from filename and content keywords. Deterministic: no model
// calls, the same input always yields the same classification.
type Classifier struct {
	vocab Vocabulary
}

func NewClassifier(vocab Vocabulary) *Classifier {
	return &Classifier{vocab: vocab}
}

// SniffMIME resolves the effective MIME type: magic bytes first, then
// the filename extension, finally the declared type.
func SniffMIME(filename string, head []byte, declared string) string {
	for _, sig := range magicSignatures {
		if bytes.HasPrefix(head, sig.prefix) {
			return sig.mime
		}
	}
	if mime, ok := extensionMIME[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return declared
}

// Classify scores the extracted text plus filename against the keyword
// vocabularies. Confidence reflects how decisively the winning label
// beat the alternatives.
func (c *Classifier) Classify(filename string, head []byte, text string) domain.Classification {
	corpus := strings.ToLower(filename + " " + text)

	docType, typeConf := bestLabel(corpus, c.vocab.Types)
	if docType == "" {
		docType = string(domain.TypeOther)
		typeConf = 0.2
	}

	category, catConf := bestLabel(corpus, c.vocab.Categories)
	subcategory, subConf := bestLabel(corpus, c.vocab.Subcategories)

	confidence := typeConf
	if category != "" {
		confidence = (typeConf + catConf) / 2
	}
	if subcategory != "" && subConf < confidence {
		// A weak subcategory match drags the whole classification down
		// so borderline documents land in review.
		confidence = (confidence + subConf) / 2
	}

	return domain.Classification{
		Type:        domain.DocumentType(docType),
		Category:    category,
		Subcategory: subcategory,
		Period:      ExtractPeriod(corpus),
		Confidence:  confidence,
	}
}

// bestLabel picks the vocabulary label with the most keyword hits.
// Ties break alphabetically so classification stays deterministic.
func bestLabel(corpus string, vocab map[string][]string) (string, float64) {
	best := ""
	bestHits := 0
	totalHits := 0

	labels := make([]string, 0, len(vocab))
	for label := range vocab {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		hits := 0
		for _, kw := range vocab[label] {
			if strings.Contains(corpus, kw) {
				hits++
			}
		}
		totalHits += hits
		if hits > bestHits {
			best = label
			bestHits = hits
		}
	}

	if bestHits == 0 {
		return "", 0
	}
	confidence := float64(bestHits) / float64(totalHits)
	if confidence > 1 {
		confidence = 1
	}
	// Even an uncontested single-keyword hit is weak evidence.
	if bestHits == 1 && confidence > 0.6 {
		confidence = 0.6
	}
	return best, confidence
}

// ExtractPeriod finds the first tax period mention in the text and
// normalises it to YYYY-MM. Returns "unknown" when nothing matches.
func ExtractPeriod(text string) string {
	if m := monthNamePeriodRe.FindStringSubmatch(text); m != nil {
		if num, ok := monthNumbers[strings.ToLower(m[1])]; ok {
			return fmt.Sprintf("%s-%s", m[2], num)
		}
	}
	if m := numericPeriodRe.FindStringSubmatch(text); m != nil {
		if month := padMonth(m[2]); month != "" {
			return fmt.Sprintf("%s-%s", m[1], month)
		}
	}
	if m := reverseNumericRe.FindStringSubmatch(text); m != nil {
		if month := padMonth(m[1]); month != "" {
			return fmt.Sprintf("%s-%s", m[2], month)
		}
	}
	return domain.PeriodUnknown
}

func padMonth(raw string) string {
	if len(raw) == 1 {
		raw = "0" + raw
	}
	if raw < "01" || raw > "12" {
		return ""
	}
	return raw
}
