package about

const (
	Name    = "livereload"
	Version = "0.3.0"
)
