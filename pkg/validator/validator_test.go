package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("kim@example.com", "kim_01", "Kim", "Passw0rd")
	assert.False(t, errs.HasErrors())

	errs = ValidateRegister("not-an-email", "k", "", "short")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "display_name")
	assert.Equal(t, "Password must be at least 8 characters", errs["password"])
}

func TestValidatePasswordComplexity(t *testing.T) {
	errs := ValidateRegister("kim@example.com", "kim", "Kim", "alllowercase")
	assert.Equal(t, "Password must contain at least one uppercase letter, one number", errs["password"])
}

func TestValidateLogin(t *testing.T) {
	assert.False(t, ValidateLogin("kim@example.com", "x").HasErrors())

	errs := ValidateLogin("", "")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		price  int64
		brand  int64
		cat    int64
		newB   string
		newC   string
		images []string
		fields []string
	}{
		{name: "existing catalog", title: "Front bumper", price: 15000, brand: 1, cat: 2},
		{name: "custom catalog", title: "Front bumper", price: 15000, newB: "Hyundai", newC: "Body"},
		{name: "missing everything", fields: []string{"title", "price", "brand", "category"}},
		{name: "blank custom names", title: "x", price: 1, newB: "  ", newC: "  ", fields: []string{"brand", "category"}},
		{name: "too many images", title: "x", price: 1, brand: 1, cat: 1, images: make11(), fields: []string{"images"}},
		{name: "empty image", title: "x", price: 1, brand: 1, cat: 1, images: []string{""}, fields: []string{"images"}},
		{name: "long title", title: strings.Repeat("부", 201), price: 1, brand: 1, cat: 1, fields: []string{"title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateProduct(tt.title, tt.price, tt.brand, tt.cat, tt.newB, tt.newC, tt.images, 10)
			assert.Len(t, errs, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func make11() []string {
	out := make([]string, 11)
	for i := range out {
		out[i] = "https://img/" + string(rune('a'+i))
	}
	return out
}

func TestValidateMessage(t *testing.T) {
	assert.False(t, ValidateMessage("안녕하세요").HasErrors())
	assert.False(t, ValidateMessage(strings.Repeat("가", maxMessageLength)).HasErrors())
	assert.True(t, ValidateMessage(strings.Repeat("가", maxMessageLength+1)).HasErrors())
}
