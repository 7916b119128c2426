package httperr

import "errors"

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	var target *BadRequestError
	ok := errors.As(err, &target)
	return ok
}

type UnauthorizedError struct {
	msg string
}

func (e *UnauthorizedError) Error() string { return e.msg }

func NewUnauthorized(msg string) error { return &UnauthorizedError{msg: msg} }

func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	ok := errors.As(err, &target)
	return ok
}

type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

func NewNotFound(msg string) error { return &NotFoundError{msg: msg} }

func IsNotFound(err error) bool {
	var target *NotFoundError
	ok := errors.As(err, &target)
	return ok
}
