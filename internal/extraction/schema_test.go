package extraction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docfill/internal/extraction"
)

func TestValidateAgainstSchema_Template(t *testing.T) {
	valid := `{"content_nodes":[{"type":"text","content":"Hi "}],
	  "placeholders":[{"key":"name","raw":"[Name]","type":"STRING","required":true,"value":null}]}`
	assert.NoError(t, extraction.ValidateAgainstSchema(extraction.TemplateSchema(), []byte(valid)))

	badType := `{"content_nodes":[],"placeholders":[{"key":"name","raw":"[Name]","type":"TEXT","required":true,"value":null}]}`
	assert.Error(t, extraction.ValidateAgainstSchema(extraction.TemplateSchema(), []byte(badType)))

	badNode := `{"content_nodes":[{"type":"image"}],"placeholders":[]}`
	assert.Error(t, extraction.ValidateAgainstSchema(extraction.TemplateSchema(), []byte(badNode)))

	missing := `{"content_nodes":[]}`
	assert.Error(t, extraction.ValidateAgainstSchema(extraction.TemplateSchema(), []byte(missing)))
}

func TestValidateAgainstSchema_Fill(t *testing.T) {
	valid := `{"updates":[{"key":"name","value":"Acme"}],"reply":"Got it."}`
	assert.NoError(t, extraction.ValidateAgainstSchema(extraction.FillSchema(), []byte(valid)))

	noReply := `{"updates":[]}`
	assert.Error(t, extraction.ValidateAgainstSchema(extraction.FillSchema(), []byte(noReply)))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extraction.StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extraction.StripCodeFence("  {\"a\":1}  "))
}
