package detect

import (
	"fmt"
	"sync"

	ort "github.com/getcharzp/onnxruntime_purego"
)

// OnnxConfig configures the shared ONNX Runtime environment and the session
// options derived from it.
type OnnxConfig struct {
	SessionOptions *ort.SessionOptions
	OnnxEngine     *ort.Engine

	OnnxRuntimeLibPath string // Path to onnxruntime.dll (or .so, .dylib).
	UseCuda            bool
	NumThreads         int
}

var (
	sharedEngine *ort.Engine
	initErr      error
	once         sync.Once
)

// New loads the ONNX Runtime library (once per process) and prepares the
// session options.
func (cfg *OnnxConfig) New() error {
	if cfg.OnnxRuntimeLibPath == "" {
		return fmt.Errorf("OnnxRuntimeLibPath must be set")
	}
	once.Do(func() {
		sharedEngine, initErr = ort.NewEngine(cfg.OnnxRuntimeLibPath)
	})
	if initErr != nil {
		return fmt.Errorf("failed to initialise the ONNX Runtime environment: %w", initErr)
	}
	cfg.OnnxEngine = sharedEngine

	options, err := cfg.OnnxEngine.NewSessionOptions()
	if err != nil {
		return err
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(int32(cfg.NumThreads)); err != nil {
			return err
		}
	}

	if cfg.UseCuda {
		if err := options.EnableCUDA(); err != nil {
			return fmt.Errorf("failed to enable the CUDA execution provider: %w", err)
		}
	}
	cfg.SessionOptions = options

	return nil
}

// DefaultLibraryPath returns the onnxruntime library path for the runtime
// platform, below ./lib/.
func DefaultLibraryPath() string {
	return ort.DefaultLibraryPath()
}
