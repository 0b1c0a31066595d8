package model

import "github.com/rotisserie/eris"

// Error taxonomy. Only ErrDocumentUnreadable aborts a run; everything else is
// caught per page/layer, converted to zero yield, and recorded as a warning.
var (
	// ErrDocumentUnreadable means the document itself could not be opened.
	ErrDocumentUnreadable = eris.New("document unreadable")

	// ErrPageDegraded marks a page whose content could not be fully read.
	ErrPageDegraded = eris.New("page degraded")

	// ErrLayerTimeout marks a layer attempt that exceeded its per-page budget.
	ErrLayerTimeout = eris.New("layer timeout")

	// ErrModelUnavailable means the vision/OCR model could not be loaded.
	// Layer 3 is disabled for the run; layers 1-2 continue.
	ErrModelUnavailable = eris.New("model unavailable")
)
