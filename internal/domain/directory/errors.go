package directory

import "errors"

var ErrExportFailedPage = errors.New("cannot export a failed directory page")
