package privacy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskEmailAndPhone(t *testing.T) {
	scanner := MustNewScanner()
	text := "Email: a@b.com, phone 13800138000"

	res := scanner.MaskText(context.Background(), text)

	assert.Equal(t, "Email: {{FP_EMAIL_01}}, phone {{FP_PHONE_01}}", res.Masked)
	assert.Equal(t, Mapping{
		"{{FP_EMAIL_01}}": "a@b.com",
		"{{FP_PHONE_01}}": "13800138000",
	}, res.Mapping)
	assert.True(t, res.ScanResult.HasPII)
	assert.Equal(t, text, Restore(res.Masked, res.Mapping))
}

func TestMaskCountersPerCategory(t *testing.T) {
	scanner := MustNewScanner()
	text := "x@a.io y@b.io 13800138000 z@c.io"

	res := scanner.MaskText(context.Background(), text)

	assert.Equal(t, "{{FP_EMAIL_01}} {{FP_EMAIL_02}} {{FP_PHONE_01}} {{FP_EMAIL_03}}", res.Masked)
	assert.Len(t, res.Mapping, 4)
}

func TestMaskReusesPlaceholderForRepeatedValue(t *testing.T) {
	scanner := MustNewScanner()
	text := "a@b.com wrote to c@d.com, cc a@b.com"

	res := scanner.MaskText(context.Background(), text)

	assert.Equal(t, "{{FP_EMAIL_01}} wrote to {{FP_EMAIL_02}}, cc {{FP_EMAIL_01}}", res.Masked)
	assert.Len(t, res.Mapping, 2)
	assert.Equal(t, text, Restore(res.Masked, res.Mapping))
}

func TestMaskCounterPadding(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("u")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("@mail.com ")
	}
	res := MustNewScanner().MaskText(context.Background(), b.String())

	assert.Contains(t, res.Mapping, "{{FP_EMAIL_01}}")
	assert.Contains(t, res.Mapping, "{{FP_EMAIL_12}}")
	for k := range res.Mapping {
		assert.True(t, IsPlaceholder(k), "bad key %q", k)
	}
}

func TestMaskNoPII(t *testing.T) {
	text := "nothing sensitive"
	masked, mapping := Mask(text, ScanResult{Matches: []Match{}})
	assert.Equal(t, text, masked)
	assert.Empty(t, mapping)
	assert.NotNil(t, mapping)
}

func TestMaskSkipsPlaceholderAlreadyInText(t *testing.T) {
	scanner := MustNewScanner()
	text := "literal {{FP_EMAIL_01}} then a@b.com"

	res := scanner.MaskText(context.Background(), text)

	assert.Equal(t, "literal {{FP_EMAIL_01}} then {{FP_EMAIL_02}}", res.Masked)
	assert.Equal(t, Mapping{"{{FP_EMAIL_02}}": "a@b.com"}, res.Mapping)
	assert.Equal(t, text, Restore(res.Masked, res.Mapping))
}

func TestRoundTrip(t *testing.T) {
	scanner := MustNewScanner()
	texts := []string{
		"",
		"plain text",
		"Email: a@b.com, phone 13800138000",
		"key=sk-ABCDEFG1234567890, call 555-0100",
		"card 4111111111111111 from 10.0.0.1 and ssn 123-45-6789",
		"{{FP_PHONE_01}} 13800138000 {{FP_PHONE_02}}",
		"{{FP_EMAIL_}} {{FP_email_01}} {FP_EMAIL_01} a@b.com",
		"unicode 你好 a@b.com 手机13800138000。",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			res := scanner.MaskText(context.Background(), text)
			assert.Equal(t, text, Restore(res.Masked, res.Mapping))
			for _, m := range res.ScanResult.Matches {
				assert.NotContains(t, res.Masked, m.Value)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	mapping := Mapping{
		"{{FP_EMAIL_01}}": "a@b.com",
		"{{FP_PHONE_01}}": "13800138000",
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"all known", "mail {{FP_EMAIL_01}} or {{FP_PHONE_01}}", "mail a@b.com or 13800138000"},
		{"repeated", "{{FP_EMAIL_01}}{{FP_EMAIL_01}}", "a@b.coma@b.com"},
		{"unknown left verbatim", "see {{FP_EMAIL_07}}", "see {{FP_EMAIL_07}}"},
		{"malformed ignored", "{{FP_EMAIL_1}} {{FP_EMAIL_01}", "{{FP_EMAIL_1}} {{FP_EMAIL_01}"},
		{"no placeholders", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Restore(tt.text, mapping))
		})
	}
}

func TestRestoreIdempotent(t *testing.T) {
	mapping := Mapping{"{{FP_EMAIL_01}}": "a@b.com"}
	once := Restore("to {{FP_EMAIL_01}} and {{FP_PHONE_09}}", mapping)
	assert.Equal(t, once, Restore(once, mapping))
}

func TestRestoreEmptyMapping(t *testing.T) {
	assert.Equal(t, "{{FP_EMAIL_01}}", Restore("{{FP_EMAIL_01}}", nil))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "{{FP_NATIONALID_03}}", Placeholder(CategoryNationalID, 3))
	assert.Equal(t, "{{FP_APIKEY_100}}", Placeholder(CategoryAPIKey, 100))
	assert.True(t, IsPlaceholder("{{FP_IPADDRESS_01}}"))
	assert.False(t, IsPlaceholder("x{{FP_IPADDRESS_01}}"))
	assert.False(t, IsPlaceholder("{{FP_IPADDRESS_1}}"))
}

func TestMaskIgnoresInvalidOffsets(t *testing.T) {
	text := "abc"
	masked, mapping := Mask(text, ScanResult{HasPII: true, Matches: []Match{
		{Category: CategoryEmail, Value: "zz", Start: 2, End: 9},
	}})
	require.Equal(t, text, masked)
	assert.Empty(t, mapping)
}
