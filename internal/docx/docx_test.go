package docx_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docfill/internal/docx"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func para(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString(`<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">` + r + `</w:t></w:r>`)
	}
	b.WriteString("</w:p>")
	return b.String()
}

func body(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document ` + wordNS + `><w:body>` +
		strings.Join(paragraphs, "") + `</w:body></w:document>`
}

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	names := []string{"[Content_Types].xml"}
	if _, ok := parts["word/document.xml"]; ok {
		names = append(names, "word/document.xml")
	}
	for name := range parts {
		if name != "word/document.xml" && name != "[Content_Types].xml" {
			names = append(names, name)
		}
	}
	if _, ok := parts["[Content_Types].xml"]; !ok {
		parts["[Content_Types].xml"] = `<Types/>`
	}
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func docWith(t *testing.T, paragraphs ...string) []byte {
	return buildDocx(t, map[string]string{"word/document.xml": body(paragraphs...)})
}

func textOf(t *testing.T, data []byte) string {
	t.Helper()
	text, err := docx.ExtractText(data)
	require.NoError(t, err)
	return text
}

func TestExtractText(t *testing.T) {
	data := docWith(t,
		para("Hello ", "[Name]"),
		"<w:p></w:p>",
		`<w:p><w:r><w:t>Date:</w:t><w:tab/><w:t>{{date}}</w:t></w:r></w:p>`,
		`<w:tbl><w:tr><w:tc>`+para("Cell &amp; value")+`</w:tc></w:tr></w:tbl>`,
	)

	assert.Equal(t, "Hello [Name]\n\nDate:\t{{date}}\n\nCell & value", textOf(t, data))
}

func TestExtractText_NotDocx(t *testing.T) {
	_, err := docx.ExtractText([]byte("plain text"))
	assert.True(t, errors.Is(err, docx.ErrNotDocx))

	noBody := buildDocx(t, map[string]string{"word/styles.xml": "<w:styles/>"})
	_, err = docx.ExtractText(noBody)
	assert.True(t, errors.Is(err, docx.ErrNotDocx))
}

func TestStructuralReplacer_TokenSplitAcrossRuns(t *testing.T) {
	data := docWith(t, para("Dear [Na", "me", "], welcome"))

	res, err := docx.StructuralReplacer{}.Replace(data, []docx.Replacement{
		{Key: "name", Tokens: []string{"[Name]"}, Value: "Acme"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, res.Applied)
	assert.Equal(t, "Dear Acme, welcome", textOf(t, res.Data))
}

func TestStructuralReplacer_RepeatedTokenFillsInOrder(t *testing.T) {
	data := docWith(t, para("[Name]"), para("and [Name]"))

	res, err := docx.StructuralReplacer{}.Replace(data, []docx.Replacement{
		{Key: "name", Tokens: []string{"[Name]"}, Value: "[Name] Jr"},
		{Key: "name_2", Tokens: []string{"[Name]"}, Value: "Bob"},
	})

	require.NoError(t, err)
	assert.Equal(t, "[Name] Jr\n\nand Bob", textOf(t, res.Data))
}

func TestStructuralReplacer_EarlierEditKeepsLaterCursor(t *testing.T) {
	data := docWith(t, para("[Date][Name][Name]"))

	res, err := docx.StructuralReplacer{}.Replace(data, []docx.Replacement{
		{Key: "name", Tokens: []string{"[Name]"}, Value: "Al"},
		{Key: "date", Tokens: []string{"[Date]"}, Value: "D"},
		{Key: "name_2", Tokens: []string{"[Name]"}, Value: "Bo"},
	})

	require.NoError(t, err)
	assert.Empty(t, res.Missed)
	assert.Equal(t, "DAlBo", textOf(t, res.Data))
}

func TestStructuralReplacer_LongerEarlierValueKeepsLaterCursor(t *testing.T) {
	data := docWith(t, para("[D] [Name] [Name]"))

	res, err := docx.StructuralReplacer{}.Replace(data, []docx.Replacement{
		{Key: "name", Tokens: []string{"[Name]"}, Value: "Al"},
		{Key: "d", Tokens: []string{"[D]"}, Value: "1 January 2025"},
		{Key: "name_2", Tokens: []string{"[Name]"}, Value: "Bo"},
	})

	require.NoError(t, err)
	assert.Empty(t, res.Missed)
	assert.Equal(t, "1 January 2025 Al Bo", textOf(t, res.Data))
}

func TestStructuralReplacer_FirstMatchingCandidateWins(t *testing.T) {
	data := docWith(t, para("Signed by [Buyer] and BUYER"))

	res, err := docx.StructuralReplacer{}.Replace(data, []docx.Replacement{
		{Key: "buyer", Tokens: []string{"<<Buyer>>", "[Buyer]", "BUYER"}, Value: "Jane"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Signed by Jane and BUYER", textOf(t, res.Data))
}

func TestStructuralReplacer_HeaderAndMissed(t *testing.T) {
	data := buildDocx(t, map[string]string{
		"word/document.xml": body(para("Body text")),
		"word/header1.xml":  `<w:hdr ` + wordNS + `>` + para("[Company]") + `</w:hdr>`,
	})

	res, err := docx.StructuralReplacer{}.Replace(data, []docx.Replacement{
		{Key: "company", Tokens: []string{"[Company]"}, Value: "A & B <Ltd>"},
		{Key: "absent", Tokens: []string{"[Absent]"}, Value: "x"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"company"}, res.Applied)
	assert.Equal(t, []string{"absent"}, res.Missed)

	pkg, err := docx.Open(res.Data)
	require.NoError(t, err)
	header, ok := pkg.Part("word/header1.xml")
	require.True(t, ok)
	assert.Contains(t, string(header), "A &amp; B &lt;Ltd&gt;")
	assert.Equal(t, "Body text", textOf(t, res.Data))
}

func TestMarkupReplacer_TolerantPattern(t *testing.T) {
	data := docWith(t, `<w:p><w:r><w:t>Dear [Na</w:t></w:r><w:r><w:rPr><w:i/></w:rPr><w:t>me]</w:t></w:r></w:p>`)

	res, err := docx.MarkupReplacer{}.Replace(data, []docx.Replacement{
		{Key: "name", Tokens: []string{"[Name]"}, Value: "Acme"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, res.Applied)
	assert.Equal(t, "Dear Acme", textOf(t, res.Data))
}

func TestMarkupReplacer_FirstMatchOnly(t *testing.T) {
	data := docWith(t, para("[Name]"), para("[Name]"))

	res, err := docx.MarkupReplacer{}.Replace(data, []docx.Replacement{
		{Key: "name", Tokens: []string{"[Name]"}, Value: "Acme"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Acme\n\n[Name]", textOf(t, res.Data))
}

func TestMarkupReplacer_EscapedToken(t *testing.T) {
	data := docWith(t, para("[Terms &amp; Conditions]"))

	res, err := docx.MarkupReplacer{}.Replace(data, []docx.Replacement{
		{Key: "terms_conditions", Tokens: []string{"[Terms & Conditions]"}, Value: "Net 30"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Net 30", textOf(t, res.Data))
}

type failingReplacer struct{}

func (failingReplacer) Replace([]byte, []docx.Replacement) (*docx.Result, error) {
	return nil, errors.New("tree unavailable")
}

func TestChainReplacer_FallsBackOnError(t *testing.T) {
	data := docWith(t, para("[Name]"))
	chain := &docx.ChainReplacer{Primary: failingReplacer{}, Fallback: docx.MarkupReplacer{}}

	res, err := chain.Replace(data, []docx.Replacement{{Key: "name", Tokens: []string{"[Name]"}, Value: "Acme"}})

	require.NoError(t, err)
	assert.Equal(t, "Acme", textOf(t, res.Data))
}

func TestChainReplacer_PrimaryErrorWithoutFallback(t *testing.T) {
	chain := &docx.ChainReplacer{Primary: failingReplacer{}}
	_, err := chain.Replace(docWith(t, para("x")), nil)
	assert.Error(t, err)
}

func TestNormalize_RenamesDuplicateOccurrence(t *testing.T) {
	data := docWith(t, para("From [Name]"), para("To [Name]"))

	out, changed, err := docx.Normalize(data, []docx.Rename{
		{Key: "name", From: "[Name]", To: "[Name]"},
		{Key: "name_2", From: " [Name] ", To: "[Name_2]"},
	})

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "From [Name]\n\nTo [Name_2]", textOf(t, out))
}

func TestNormalize_OneRenamePerOccurrence(t *testing.T) {
	data := docWith(t, para("Buyer [Name] and again [Name]"), para("Seller [Name]"))

	out, changed, err := docx.Normalize(data, []docx.Rename{
		{Key: "name", From: "[Name]", To: "[Name]"},
		{Key: "name", From: "[Name]", To: "[Name]"},
		{Key: "name_2", From: "[Name]", To: "[Name_2]"},
	})

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Buyer [Name] and again [Name]\n\nSeller [Name_2]", textOf(t, out))
}

func TestNormalize_NothingToRename(t *testing.T) {
	data := docWith(t, para("[Name]"))

	out, changed, err := docx.Normalize(data, []docx.Rename{{Key: "name", From: "[Name]", To: "[Name]"}})

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, data, out)
}
