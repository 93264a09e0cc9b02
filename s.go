package stylelog
import "github.com/lmittmann/tint"
func InitDefault(opts ...*tint.Options) {}
