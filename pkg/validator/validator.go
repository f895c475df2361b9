package validator

import (
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const maxContentLength = 4000

// ValidateMessageContent covers both direct and group message bodies.
func ValidateMessageContent(content string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" {
		errs.Add("content", "Message content is required")
	} else if utf8.RuneCountInString(content) > maxContentLength {
		errs.Add("content", "Message is too long")
	}

	return errs
}

func ValidateGroup(name string, memberPublicIDs []string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Group name is required")
	} else if len(name) > 100 {
		errs.Add("name", "Group name is too long")
	}

	if len(memberPublicIDs) == 0 {
		errs.Add("member_public_ids", "At least one member is required")
	}

	return errs
}

func ValidateSearch(query string) ValidationErrors {
	errs := make(ValidationErrors)

	query = strings.TrimSpace(query)
	if query == "" {
		errs.Add("username", "Search query is required")
	} else if len(query) > 50 {
		errs.Add("username", "Search query is too long")
	}

	return errs
}
