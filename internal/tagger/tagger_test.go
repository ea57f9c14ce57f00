package tagger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDefaults(t *testing.T) {
	tg := New(nil, nil, nil)

	res := tg.Classify("Question about my account", "Could you help me log in?")
	assert.Equal(t, "English", res.Language)
	assert.Equal(t, "General Inquiry", res.VOC)
	assert.Equal(t, "Low", res.Priority)
}

func TestClassifyKeywordMatches(t *testing.T) {
	tg := New(nil, nil, nil)

	res := tg.Classify("Hola, necesito ayuda", "Please process my REFUND immediately")
	assert.Equal(t, "Spanish", res.Language)
	assert.Equal(t, "Refund Request", res.VOC)
	assert.Equal(t, "High", res.Priority)
}

func TestClassifySubjectAndBodyCombined(t *testing.T) {
	tg := New(nil, nil, nil)

	// Keyword only in body still fires.
	res := tg.Classify("Package", "it arrived broken and late")
	assert.Equal(t, "Delivery Issue", res.VOC)
}

func TestClassifyFirstRuleWins(t *testing.T) {
	tg := New(nil, nil, nil)

	// "refund" and "damaged" both present; refund rule is ordered first.
	res := tg.Classify("Damaged item", "I want a refund, it came damaged")
	assert.Equal(t, "Refund Request", res.VOC)
}

func TestClassifyCustomRules(t *testing.T) {
	tg := New(
		[]Rule{{Keywords: []string{"hallo"}, Category: "German"}},
		[]Rule{{Keywords: []string{"invoice"}, Category: "Billing"}},
		[]Rule{{Keywords: []string{"outage"}, Category: "Critical"}},
	)

	res := tg.Classify("Hallo", "our invoice is wrong and we have an outage")
	assert.Equal(t, "German", res.Language)
	assert.Equal(t, "Billing", res.VOC)
	assert.Equal(t, "Critical", res.Priority)
}
