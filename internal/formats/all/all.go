// Package all registers every pack dialect with the formats registry.
package all

import (
	_ "github.com/mind-engage/quiztab/internal/formats/legacy"
	_ "github.com/mind-engage/quiztab/internal/formats/quiztab"
)
