package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxMessageLength = 4000

func ValidateRegister(email, username, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Display name
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) < 2 {
		errs.Add("display_name", "Display name must be at least 2 characters")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidateProduct checks a new listing. Either an existing brand/category id
// or a custom name must be given for each.
func ValidateProduct(title string, price int64, brandID, categoryID int64, newBrand, newCategory string, images []string, maxImages int) ValidationErrors {
	errs := make(ValidationErrors)

	title = strings.TrimSpace(title)
	if title == "" {
		errs.Add("title", "Title is required")
	} else if utf8.RuneCountInString(title) > 200 {
		errs.Add("title", "Title is too long")
	}

	if price <= 0 {
		errs.Add("price", "Price must be greater than zero")
	}

	newBrand = strings.TrimSpace(newBrand)
	if brandID <= 0 && newBrand == "" {
		errs.Add("brand", "Select a brand or enter a new one")
	} else if utf8.RuneCountInString(newBrand) > 100 {
		errs.Add("brand", "Brand name is too long")
	}

	newCategory = strings.TrimSpace(newCategory)
	if categoryID <= 0 && newCategory == "" {
		errs.Add("category", "Select a category or enter a new one")
	} else if utf8.RuneCountInString(newCategory) > 100 {
		errs.Add("category", "Category name is too long")
	}

	if len(images) > maxImages {
		errs.Add("images", fmt.Sprintf("At most %d images are allowed", maxImages))
	}
	for _, img := range images {
		if strings.TrimSpace(img) == "" {
			errs.Add("images", "Image URLs must not be empty")
			break
		}
	}

	return errs
}

// ValidateMessage checks a message body before it reaches the service.
func ValidateMessage(content string) ValidationErrors {
	errs := make(ValidationErrors)
	if utf8.RuneCountInString(content) > maxMessageLength {
		errs.Add("content", fmt.Sprintf("Message must be at most %d characters", maxMessageLength))
	}
	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
