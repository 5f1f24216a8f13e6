package domain

import "io"

// Asset is an uploaded file on its way to the asset host.
type Asset struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
