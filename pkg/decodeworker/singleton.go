package decodeworker

import (
	"sync"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
)

var (
	globalDecoder     *Decoder
	globalDecoderOnce sync.Once
)

// GetGlobalDecoder returns the process wide decoder bound to loop. The loop passed on the
// first call wins.
func GetGlobalDecoder(loop *uiloop.Loop) *Decoder {
	globalDecoderOnce.Do(func() {
		size := coreconfig.Global.WorkerPool.Size
		if size <= 0 {
			size = 4
		}
		queue := coreconfig.Global.WorkerPool.QueueSize
		if queue <= 0 {
			queue = 250
		}
		globalDecoder = NewDecoder(loop, size, queue)
	})
	return globalDecoder
}

// StopGlobalDecoder stops the global decoder's workers.
func StopGlobalDecoder() {
	if globalDecoder != nil {
		globalDecoder.Stop()
	}
}

// GetGlobalStats returns stats from the global decoder.
func GetGlobalStats() PoolStats {
	if globalDecoder == nil {
		return PoolStats{}
	}
	return globalDecoder.Stats()
}
