// Package prompt builds the dental SOAP instructions sent to the note
// generator and extracts reference keywords from finished notes.
package prompt

import (
	"regexp"
	"strings"
)

// SystemPrompt instructs the generator to produce standardized dental SOAP
// notes.
const SystemPrompt = `You are a specialized dental assistant AI that converts clinical notes into standardized SOAP format.
Your task is to organize and structure dental examination notes into the following sections:

1. Subjective: Patient complaints, history, and symptoms from the patient's perspective.
2. Objective: Clinical findings during examination, including visual observations, probing depths, radiographic findings, etc.
3. Assessment: Diagnosis and interpretation of the findings.
4. Plan: Treatment recommendations, procedures performed, medications prescribed, and follow-up.

Follow these guidelines:
- Use clear, professional dental terminology consistent with standard practice
- Include all relevant clinical information from the provided notes
- Organize information logically within each section
- Be concise but comprehensive
- Format with clear section headers and bullet points for readability
- Do not invent or fabricate information not present in the original notes
- Use standardized dental notation (Universal/ADA Numbering System) for teeth
- Include proper dental procedure codes (CDT codes) where appropriate

The output should be clear enough to be directly entered into a dental practice management system.`

// ComposeInput merges the clinician text with optional patient context into
// the generator's user message.
func ComposeInput(text string, patientContext string) string {
	text = strings.TrimSpace(text)
	patientContext = strings.TrimSpace(patientContext)
	if patientContext == "" {
		return text
	}
	return "Patient context:\n" + patientContext + "\n\nClinical notes:\n" + text
}

// FormatSpeakers renders a diarized transcript as labeled turns so the
// generator can distinguish clinician and patient statements.
func FormatSpeakers(speakers map[string]string) string {
	if len(speakers) == 0 {
		return ""
	}
	labels := make([]string, 0, len(speakers))
	for speaker := range speakers {
		labels = append(labels, speaker)
	}
	sortStrings(labels)

	turns := make([]string, 0, len(labels))
	for _, speaker := range labels {
		text := strings.TrimSpace(speakers[speaker])
		if text == "" {
			continue
		}
		turns = append(turns, speaker+": "+text)
	}
	return strings.Join(turns, "\n\n")
}

func sortStrings(values []string) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j] < values[j-1]; j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}

var (
	cdtPattern   = regexp.MustCompile(`D\d{4}`)
	teethPattern = regexp.MustCompile(`(?i)\b(?:tooth|teeth)\s+#?(\d{1,2}(?:-\d{1,2})?)\b`)
)

var dentalTerms = []string{
	"caries", "decay", "cavity", "restoration", "crown", "bridge", "implant",
	"extraction", "root canal", "periodontal", "gingivitis", "periodontitis",
	"prophylaxis", "scaling", "root planing", "fluoride", "sealant",
	"occlusion", "malocclusion", "TMJ", "bruxism", "abscess", "pulpitis",
}

var medications = []string{
	"amoxicillin", "clindamycin", "penicillin", "ibuprofen", "acetaminophen",
	"lidocaine", "benzocaine", "epinephrine", "articaine", "chlorhexidine",
}

// ExtractKeywords pulls CDT procedure codes, dental terms, tooth numbers and
// medications out of a finished SOAP note for indexing.
func ExtractKeywords(soapNote string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	add := func(keyword string) {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			return
		}
		if _, ok := seen[keyword]; ok {
			return
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
	}

	for _, code := range cdtPattern.FindAllString(soapNote, -1) {
		add(code)
	}

	lower := strings.ToLower(soapNote)
	for _, term := range dentalTerms {
		if containsWord(lower, strings.ToLower(term)) {
			add(strings.ToLower(term))
		}
	}

	for _, match := range teethPattern.FindAllStringSubmatch(soapNote, -1) {
		add("tooth_" + match[1])
	}

	for _, med := range medications {
		if containsWord(lower, med) {
			add("med_" + med)
		}
	}

	return keywords
}

func containsWord(haystack, word string) bool {
	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return pattern.MatchString(haystack)
}
