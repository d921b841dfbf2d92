package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tehqua/Vitalis/internal/tools"
)

// masterSystemPrompt frames every model call. The patient authentication
// context is appended per turn.
const masterSystemPrompt = `You are a medical consultation AI assistant for a hospital's patient support system.

ROLE AND RESPONSIBILITIES:
- Provide medical information and health guidance to registered patients
- Answer questions about their medical history and records
- Help interpret skin condition analysis results
- Offer preliminary health advice while emphasizing the importance of professional medical care

AVAILABLE TOOLS:
1. analyze_skin_image: Classify skin conditions from uploaded images (8 categories)
2. patient_record_retriever: Retrieve patient's medical history and records
3. speech_to_text: (Automatically processed) Convert audio to text

CRITICAL GUIDELINES:
1. NEVER provide definitive medical diagnoses
2. ALWAYS recommend consulting with a healthcare professional for serious concerns
3. Use qualifying language: "may indicate", "could be", "suggests possibility of"
4. Verify patient identity before accessing medical records
5. Maintain patient privacy - only discuss the current patient's information
6. Be empathetic, clear, and use language appropriate for patients

WHEN TO USE TOOLS:
- User uploads/mentions a skin image: use analyze_skin_image
- User asks about their medical history, past visits, medications, or test results: use patient_record_retriever
- User describes symptoms that might be in their records: consider using patient_record_retriever

SAFETY PROTOCOLS:
- Detect emergency symptoms (severe chest pain, difficulty breathing, severe bleeding, etc.)
- For emergencies: Immediately advise calling emergency services
- Do not suggest specific medications without reviewing patient history
- Flag potential drug interactions if information is available

RESPONSE STYLE:
- Be warm and supportive
- Explain medical terms in simple language
- Ask clarifying questions when needed
- Provide actionable next steps
- Always include appropriate medical disclaimers`

// Fixed user-facing strings. These are the only responses the engine
// emits without consulting the model.
const (
	defaultGreeting = "Hello"

	modelFailureResponse = "I apologize, but I'm having trouble processing your request. " +
		"Please try again or contact support if the issue persists."

	rephraseResponse = "I apologize, but I need to rephrase my response to ensure " +
		"it follows medical guidance protocols. Please rephrase your " +
		"question and I'll provide appropriate information."

	privacyResponse = "I apologize, but I cannot provide that information due to " +
		"privacy concerns. Please contact your healthcare provider directly."

	errorTerminalResponse = "I apologize, but an error occurred while processing your request. " +
		"Please try again or contact support if the issue persists."
)

// transcriptionErrorMarker replaces the transcript when the speech
// collaborator fails. It reaches the model context, never the user.
const transcriptionErrorMarker = "[Error transcribing audio]"

// transcriptLabel prefixes transcribed speech when it is merged with
// typed text into the effective input.
const transcriptLabel = "[Transcribed from audio]: "

// retrievalKeywords trigger patient record retrieval when any of them
// appears in the effective input (case-insensitive substring match).
var retrievalKeywords = []string{
	"my", "history", "record", "medication", "prescription",
	"visit", "test", "result", "doctor", "appointment",
	"vaccine", "allergy", "blood pressure", "lab",
}

// defaultRetrievalPredicate reports whether the input looks like a
// question about the patient's own records.
func defaultRetrievalPredicate(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range retrievalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// patientContext pins the model to the authenticated patient so it does
// not re-verify identity mid-conversation.
func patientContext(patientID string) string {
	return fmt.Sprintf(`AUTHENTICATION STATUS: Patient is ALREADY logged in and verified.
- Patient ID: %s
- DO NOT ask for name, date of birth, or any identity verification
- Use this patient_id directly when querying medical records
- You already have full access to this patient's data`, patientID)
}

// formatVisionContext renders a classification result as a labeled
// context block for the model.
func formatVisionContext(res *tools.VisionResult) string {
	labels := make([]string, 0, len(res.Distribution))
	for name := range res.Distribution {
		labels = append(labels, name)
	}
	sort.Strings(labels)

	var probs strings.Builder
	for _, name := range labels {
		fmt.Fprintf(&probs, "- %s: %.1f%%\n", name, res.Distribution[name]*100)
	}

	return fmt.Sprintf(`The patient has uploaded an image of a skin condition.

IMAGE ANALYSIS RESULTS:
Class: %s
Confidence: %.1f%%

All probabilities:
%s
INSTRUCTIONS:
1. Explain the classification result in patient-friendly language
2. Ask about additional symptoms (itching, pain, duration, spread, etc.)
3. Consider using patient_record_retriever to check for relevant medical history
4. Provide general advice while recommending professional evaluation
5. Do NOT make definitive diagnoses - use qualifying language

Remember: This is an AI classification with %.1f%% confidence. Professional dermatological evaluation is recommended.`,
		res.Label, res.Confidence*100, probs.String(), res.Confidence*100)
}

// formatRetrievalContext renders retrieved record snippets as a labeled
// context block for the model.
func formatRetrievalContext(res *tools.RetrievalResult) string {
	context := res.Context
	if context == "" {
		context = "No information retrieved"
	}

	return fmt.Sprintf(`The following information has been retrieved from the patient's medical records:

%s

INSTRUCTIONS:
1. Use this information to provide context-aware responses
2. Reference specific dates, tests, or medications when relevant
3. Explain medical terminology in simple terms
4. Highlight any patterns or concerns that may require follow-up
5. Maintain patient privacy - this is THEIR information only

Remember: You are reviewing the patient's own medical history to help them understand their health better.`, context)
}

// cleanResponse drops blank lines and trims surrounding whitespace.
func cleanResponse(response string) string {
	lines := strings.Split(response, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
