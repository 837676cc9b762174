package markdown

import "errors"

var errInvalidEncoding = errors.New("markdown is not valid utf-8")
