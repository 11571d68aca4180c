package storage

// PassthroughThumbnailer satisfies the core's thumbnail contract without
// producing a derived image: clients receive the original URL. Image resizing
// lives outside this service; plugging in a real implementation only requires
// another Thumbnail method.
type PassthroughThumbnailer struct{}

func (PassthroughThumbnailer) Thumbnail(url string) (string, error) {
	return url, nil
}
