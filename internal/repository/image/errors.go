// Package image holds the storage contract for encoded snapshot images.
package image

import "errors"

var ErrImageNotFound = errors.New("image not found")
