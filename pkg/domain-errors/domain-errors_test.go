package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: These are core error primitives used at every trust boundary.
// Unit tests ensure invariants like "wrapped domain errors preserve original code"
// and "errors.Is matches by code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "agreement not found"}
		s.Equal("agreement not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeNotFound}
		s.Equal("not_found", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("database connection failed")
		err := &Error{Code: CodeInternal, Message: "service error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeAlreadyExists, Message: "agreement ag-1 exists"}
		err2 := &Error{Code: CodeAlreadyExists, Message: "agreement ag-2 exists"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodePaused}
		err2 := &Error{Code: CodeUnauthorized}
		s.False(err1.Is(err2))
	})

	s.Run("does not match non-domain errors", func() {
		err1 := &Error{Code: CodeNotFound}
		err2 := errors.New("not found")
		s.False(err1.Is(err2))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeNotFound, Message: "original"}
		wrapped := &Error{Code: CodeInternal, Message: "wrapped", Err: inner}
		target := &Error{Code: CodeNotFound}
		s.True(errors.Is(wrapped, target))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves code of wrapped domain error", func() {
		inner := New(CodeInvalidTransition, "revoked agreements cannot be reactivated")
		wrapped := Wrap(inner, CodeInternal, "update failed")
		s.True(HasCode(wrapped, CodeInvalidTransition))
	})

	s.Run("applies code for plain errors", func() {
		inner := errors.New("connection reset")
		wrapped := Wrap(inner, CodeInternal, "store unavailable")
		s.True(HasCode(wrapped, CodeInternal))
		s.True(errors.Is(wrapped, inner))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("reports false for nil error", func() {
		s.False(HasCode(nil, CodeNotFound))
	})

	s.Run("reports false for plain errors", func() {
		s.False(HasCode(errors.New("boom"), CodeInternal))
	})
}
