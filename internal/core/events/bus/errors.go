package bus

import "github.com/pkg/errors"

var ErrNilHandler = errors.New("nil event handler")
