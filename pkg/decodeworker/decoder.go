// Package decodeworker runs vector animation decodes and raster thumbnail conversions on
// a sharded worker pool that is started on first use.
package decodeworker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// Decoder implements media.IDecoder on top of Pool.
type Decoder struct {
	loop      *uiloop.Loop
	size      int
	queueSize int

	warmOnce sync.Once
	warmed   atomic.Bool
	pool     *Pool
	cancel   context.CancelFunc

	mu         sync.Mutex
	animations map[rendertree.ID]*Animation
}

// NewDecoder returns a cold decoder. Workers start on the first Warm or decode call.
func NewDecoder(loop *uiloop.Loop, size, queueSize int) *Decoder {
	return &Decoder{
		loop:       loop,
		size:       size,
		queueSize:  queueSize,
		animations: make(map[rendertree.ID]*Animation),
	}
}

// Warm starts the workers once.
func (d *Decoder) Warm() {
	d.warmOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		d.pool = NewPool(d.size, d.queueSize)
		d.pool.Start(ctx)
		d.warmed.Store(true)
		logrus.Infof("[DECODE_POOL] Warmed on first use")
	})
}

// Warmed reports whether Warm has run.
func (d *Decoder) Warmed() bool { return d.warmed.Load() }

// Stop stops the workers if they were started.
func (d *Decoder) Stop() {
	if !d.Warmed() {
		return
	}
	d.cancel()
	d.pool.Stop()
}

// Stats returns pool metrics, zero valued while cold.
func (d *Decoder) Stats() PoolStats {
	if !d.Warmed() {
		return PoolStats{}
	}
	return d.pool.GetStats()
}

// DecodeVectorAnimation parses p.Data on a worker and mounts the animation into
// p.Container on the UI loop.
func (d *Decoder) DecodeVectorAnimation(ctx context.Context, p media.AnimationParams) *future.Future[media.Animation] {
	d.Warm()
	f, fctx := future.WithCancel[media.Animation](ctx)

	key := "anim"
	if p.Container != nil {
		key += ":" + strconv.FormatUint(uint64(p.Container.ID()), 10)
	}

	ok := d.pool.TryDispatch(Job{Key: key, Kind: "vector", Handler: func(context.Context) error {
		if err := fctx.Err(); err != nil {
			f.Reject(err)
			return nil
		}
		header, err := ParseAnimation(p.Data)
		if err != nil {
			err = fmt.Errorf("%w: %v", media.ErrDecodeFailure, err)
			f.Reject(err)
			return err
		}

		anim := newAnimation(d.loop, header, p)
		d.loop.Post(func() {
			if errors.Is(f.Err(), future.ErrCancelled) {
				return
			}
			anim.mount()
			if p.Container != nil {
				d.mu.Lock()
				d.animations[p.Container.ID()] = anim
				d.mu.Unlock()
			}
		})
		f.Resolve(anim)
		return nil
	}})
	if !ok {
		f.Reject(fmt.Errorf("%w: decode pool saturated", media.ErrDecodeFailure))
	}
	return f
}

// Animation returns the animation mounted into container.
func (d *Decoder) Animation(container *rendertree.Node) (media.Animation, bool) {
	if container == nil {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.animations[container.ID()]
	if !ok {
		return nil, false
	}
	return a, true
}

// ConvertRasterThumbnail re-encodes a WebP (or any decodable raster) thumbnail as PNG for
// hosts without native WebP support.
func (d *Decoder) ConvertRasterThumbnail(ctx context.Context, id string, data []byte) *future.Future[[]byte] {
	d.Warm()
	f, fctx := future.WithCancel[[]byte](ctx)

	ok := d.pool.TryDispatch(Job{Key: "thumb:" + id, Kind: "raster", Handler: func(context.Context) error {
		if err := fctx.Err(); err != nil {
			f.Reject(err)
			return nil
		}
		out, err := ConvertToPNG(data)
		if err != nil {
			f.Reject(err)
			return err
		}
		f.Resolve(out)
		return nil
	}})
	if !ok {
		f.Reject(fmt.Errorf("%w: decode pool saturated", media.ErrDecodeFailure))
	}
	return f
}

// ConvertToPNG decodes a raster image and encodes it as PNG.
func ConvertToPNG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrDecodeFailure, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrDecodeFailure, err)
	}
	return buf.Bytes(), nil
}
