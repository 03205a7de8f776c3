package models

import (
	"encoding/json"

	"billine-gateway/internal/signing"
	"billine-gateway/pkg/errors"
)

// Status is the outcome reported in a callback.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusSuccess, StatusFail:
		return Status(s), nil
	default:
		return "", errors.NewFormatError("status", "unknown token "+s)
	}
}

func (s Status) Value() signing.Value {
	return signing.Text(string(s))
}

func (s Status) MarshalJSON() ([]byte, error) {
	if _, err := ParseStatus(string(s)); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return errors.NewFormatError("status", "expected a string")
	}
	parsed, err := ParseStatus(token)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Language selects the payment page language.
type Language string

const (
	LanguageEn Language = "en"
	LanguageUa Language = "ua"
)

func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageEn, LanguageUa:
		return Language(s), nil
	default:
		return "", errors.NewFormatError("lang", "unknown token "+s)
	}
}

func (l Language) Value() signing.Value {
	return signing.Text(string(l))
}

func (l Language) MarshalJSON() ([]byte, error) {
	if _, err := ParseLanguage(string(l)); err != nil {
		return nil, err
	}
	return json.Marshal(string(l))
}

func (l *Language) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return errors.NewFormatError("lang", "expected a string")
	}
	parsed, err := ParseLanguage(token)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
