// Command streamclient connects to a closestbody stream server and prints
// every decoded skeleton and colour message.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/closestbody/internal/detector"
	"github.com/ayusman/closestbody/internal/log"
	"github.com/ayusman/closestbody/internal/stream"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9009", "stream server address")
	streams := flag.String("streams", "closestbody,lh,rh,head", "comma-separated streams to subscribe to")
	timeout := flag.Duration("timeout", 5*time.Second, "dial timeout")
	flag.Parse()

	ids, err := parseStreams(*streams)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, ids, *timeout, os.Stdout); err != nil {
		log.Error("stream client failed", "error", err)
		os.Exit(1)
	}
}

var streamNames = map[string]stream.ID{
	"closestbody": stream.ClosestBody,
	"lh":          stream.HandColorLH,
	"rh":          stream.HandColorRH,
	"head":        stream.HeadColor,
}

func parseStreams(s string) ([]stream.ID, error) {
	var ids []stream.ID
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		id, ok := streamNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown stream %q", name)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no streams selected")
	}
	return ids, nil
}

// run subscribes to every stream and prints messages until ctx is done or
// a stream fails.
func run(ctx context.Context, addr string, ids []stream.ID, timeout time.Duration, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, line)
	}

	for _, id := range ids {
		dialCtx, cancelDial := context.WithTimeout(ctx, timeout)
		client, err := stream.Dial(dialCtx, addr, id)
		cancelDial()
		if err != nil {
			cancel()
			g.Wait()
			return fmt.Errorf("dial %s: %w", id, err)
		}
		log.Info("subscribed", "stream", id.String(), "addr", addr)

		g.Go(func() error {
			<-ctx.Done()
			return client.Close()
		})
		g.Go(func() error {
			err := receive(client, emit)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func receive(client *stream.Client, emit func(string)) error {
	for {
		if client.ID() == stream.ClosestBody {
			msg, err := client.ReadSkeleton()
			if err != nil {
				return fmt.Errorf("read skeleton: %w", err)
			}
			emit(formatSkeleton(msg))
			continue
		}

		msg, err := client.ReadColor()
		if err != nil {
			return fmt.Errorf("read %s: %w", client.ID(), err)
		}
		emit(formatColor(client.ID(), msg))
	}
}

func formatSkeleton(m stream.SkeletonMessage) string {
	neck := detector.Neck * detector.ValuesPerJoint
	return fmt.Sprintf("%d skeleton bodies=%d engaged=%v neck=(%.1f, %.1f)",
		m.Timestamp, m.BodyCount, m.Engaged != 0, m.Keypoints[neck], m.Keypoints[neck+1])
}

func formatColor(id stream.ID, m stream.ColorMessage) string {
	var sum uint64
	for _, v := range m.Pixels {
		sum += uint64(v)
	}
	mean := 0.0
	if len(m.Pixels) > 0 {
		mean = float64(sum) / float64(len(m.Pixels))
	}
	return fmt.Sprintf("%d %s type=%d %dx%d mean=%.1f", m.Timestamp, id, m.FrameType, m.Width, m.Height, mean)
}
