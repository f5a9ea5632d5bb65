// Command texregdemo runs producers that stream animated frames through the
// texture registry into a compositor and saves the final composition.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/texreg"
	"github.com/gogpu/texreg/compositor"
	"github.com/gogpu/texreg/scheduler"
	"github.com/gogpu/texreg/storage"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/draw"
)

func main() {
	var (
		tile     = flag.Int("tile", 64, "tile size of each texture in pixels")
		sources  = flag.Int("sources", 4, "number of producer textures")
		frames   = flag.Int("frames", 30, "number of composed frames")
		interval = flag.Duration("interval", 16*time.Millisecond, "producer frame interval")
		backend  = flag.String("backend", "memory", "texture storage: memory or noop")
		output   = flag.String("output", "texreg.png", "output file (memory backend only)")
		workers  = flag.Int("workers", 0, "populate goroutines (0 = GOMAXPROCS, 1 = sequential)")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	texreg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	store, cleanup, err := openStorage(*backend)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer cleanup()

	runner := scheduler.NewTaskRunner("compositor")
	defer runner.Close()

	var copts []compositor.Option
	if *workers != 1 {
		copts = append(copts, compositor.WithWorkers(*workers))
	}
	comp := compositor.New(copts...)
	defer comp.Close()
	reg, err := texreg.New(runner, store, texreg.WithHooks(comp))
	if err != nil {
		log.Fatalf("Failed to create registrar: %v", err)
	}
	defer reg.Close()
	comp.SetPopulater(reg)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := range *sources {
		src := newAnimatedSource(i, *sources)
		id, err := reg.Register(ctx, texreg.Descriptor{
			Kind:    texreg.KindPixelBuffer,
			Content: src.content,
			Label:   fmt.Sprintf("source-%d", i),
		})
		if err != nil {
			log.Fatalf("Failed to register source %d: %v", i, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.produce(ctx, reg, id, *interval)
		}()
	}

	// Layers are copied into the canvas while borrowed.
	canvas := image.NewRGBA(image.Rect(0, 0, max(1, *sources)*(*tile), *tile))
	var layers int
	for range *frames {
		done := make(chan struct{})
		runner.Post(func(context.Context) {
			slot := 0
			layers = comp.Compose(*tile, *tile, func(l compositor.Layer) {
				if img, ok := l.Surface.Handle.(*image.RGBA); ok {
					r := image.Rect(slot*(*tile), 0, (slot+1)*(*tile), *tile)
					draw.Draw(canvas, r, img, img.Bounds().Min, draw.Src)
				}
				slot++
			})
			close(done)
		})
		<-done
		time.Sleep(*interval)
	}

	cancel()
	wg.Wait()

	st := comp.Stats()
	log.Printf("Composed %d frames: %d layers, %d populates, %d misses, %d frames marked",
		*frames, layers, st.Populated, st.PopulateMisses, st.FramesMarked)

	if *backend != "memory" {
		return
	}
	if err := savePNG(*output, canvas); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Composition saved to %s\n", *output)
}

// openStorage returns the requested storage backend and its cleanup.
func openStorage(name string) (texreg.Storage, func(), error) {
	switch name {
	case "memory":
		return storage.NewMemory(), func() {}, nil
	case "noop":
		api := noop.API{}
		instance, err := api.CreateInstance(nil)
		if err != nil {
			return nil, nil, err
		}
		adapters := instance.EnumerateAdapters(nil)
		if len(adapters) == 0 {
			instance.Destroy()
			return nil, nil, fmt.Errorf("noop: no adapters")
		}
		dev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
		if err != nil {
			instance.Destroy()
			return nil, nil, err
		}
		return storage.NewHAL(dev.Device, dev.Queue), func() {
			dev.Device.Destroy()
			instance.Destroy()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

// animatedSource produces a solid tile whose brightness cycles per frame.
type animatedSource struct {
	base  color.RGBA
	frame atomic.Int64
}

func newAnimatedSource(i, n int) *animatedSource {
	step := uint8(255 * (i + 1) / (n + 1))
	return &animatedSource{base: color.RGBA{R: step, G: 255 - step, B: 128, A: 255}}
}

func (s *animatedSource) content(width, height int) (*texreg.PixelBuffer, bool) {
	if width <= 0 || height <= 0 {
		return nil, false
	}
	f := uint8(s.frame.Load() % 64)
	c := s.base
	c.B = 64 + f*2

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return texreg.NewPixelBuffer(img), true
}

// produce advances the animation and announces each frame until ctx is done.
func (s *animatedSource) produce(ctx context.Context, reg *texreg.Registrar, id texreg.TextureID, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.frame.Add(1)
			if !reg.MarkFrameAvailable(ctx, id) {
				return
			}
		}
	}
}

// savePNG writes img as PNG.
func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
