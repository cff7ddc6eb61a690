package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStruct(t *testing.T) {
	note := "  <b>vip</b>  "
	req := DepositRequest{
		Description:    "  <script>alert(1)</script>  ",
		IdempotencyKey: &note,
	}

	SanitizeStruct(&req)

	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", req.Description)
	assert.Equal(t, "&lt;b&gt;vip&lt;/b&gt;", *req.IdempotencyKey)
}

func TestSanitizeStruct_IgnoresNonStructs(t *testing.T) {
	s := "  spaces  "
	SanitizeStruct(s)  // not a pointer
	SanitizeStruct(&s) // not a struct
	assert.Equal(t, "  spaces  ", s)
}

func TestSafeStringPattern(t *testing.T) {
	assert.True(t, safeStringRe.MatchString("refund-2026.08:credit"))
	assert.True(t, safeStringRe.MatchString("session_42"))
	assert.False(t, safeStringRe.MatchString("has spaces"))
	assert.False(t, safeStringRe.MatchString("semi;colon"))
	assert.False(t, safeStringRe.MatchString(""))
}
