package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrorRecordNotFound)
}
