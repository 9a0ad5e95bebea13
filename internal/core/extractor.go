package core

import "context"

// DocumentExtractor turns a raw upload into canonical plain text.
// The contentType hint chooses the parsing strategy; name is used for sniffing
// when the hint is missing or generic.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType, name string) (string, error)
}
