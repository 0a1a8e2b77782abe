package jose

import (
	jsoniter "github.com/json-iterator/go"
)

// json routes every encode and decode in this package through json-iterator's
// stdlib-compatible config. Map keys are sorted, so flattened claims objects
// serialize deterministically.
var json = jsoniter.ConfigCompatibleWithStandardLibrary
