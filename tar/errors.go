package tar

import "errors"

var errBadOctal = errors.New("tar: size field is not valid octal ASCII")
