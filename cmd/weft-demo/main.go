package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phroun/weft"
)

func main() {
	scenario := flag.String("scenario", "unbuffered", "scenario to run: unbuffered, buffered, sleep, pipeline")
	configPath := flag.String("config", "", "optional YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	cats := flag.String("cats", "", "comma-separated debug categories (sched,fiber,channel,loop,timer,io)")
	flag.Parse()

	config := weft.DefaultConfig()
	if *configPath != "" {
		loaded, err := weft.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "weft-demo: %v\n", err)
			os.Exit(1)
		}
		config = loaded
	}
	if *debug {
		config.Debug = true
	}
	for _, name := range strings.Split(*cats, ",") {
		if cat, ok := categoryByName(strings.TrimSpace(name)); ok {
			config.DebugCategories = append(config.DebugCategories, cat)
		}
	}

	rt := weft.New(config)

	var err error
	switch *scenario {
	case "unbuffered":
		err = runUnbuffered(rt)
	case "buffered":
		err = runBuffered(rt)
	case "sleep":
		err = runSleep(rt)
	case "pipeline":
		err = runPipeline(rt)
	default:
		fmt.Fprintf(os.Stderr, "weft-demo: unknown scenario %q\n", *scenario)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "weft-demo: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("spawned %d fibers\n", rt.SpawnCount())
}

func categoryByName(name string) (weft.LogCategory, bool) {
	switch name {
	case "sched":
		return weft.CatSched, true
	case "fiber":
		return weft.CatFiber, true
	case "channel":
		return weft.CatChannel, true
	case "loop":
		return weft.CatLoop, true
	case "timer":
		return weft.CatTimer, true
	case "io":
		return weft.CatIO, true
	}
	return weft.CatNone, false
}

// runUnbuffered shows the rendezvous on a capacity-zero channel: the
// sender blocks until the receiver takes the value.
func runUnbuffered(rt *weft.Runtime) error {
	return rt.Run(func(f *weft.Fiber) error {
		ch := weft.NewChannel[string](rt, 0)
		f.Spawn(func(sender *weft.Fiber) error {
			fmt.Println("sender: before send")
			if err := ch.Send(sender, "hello"); err != nil {
				return err
			}
			fmt.Println("sender: after send")
			return nil
		})
		fmt.Println("main: before receive")
		v, ok := ch.Recv(f)
		fmt.Printf("main: received %q (ok=%v)\n", v, ok)
		f.Yield()
		return nil
	})
}

// runBuffered fills a capacity-2 channel and drains it: the first value is
// handed straight to the waiting receiver, the rest fit the buffer, so the
// sender finishes before a single value is printed.
func runBuffered(rt *weft.Runtime) error {
	return rt.Run(func(f *weft.Fiber) error {
		ch := weft.NewChannel[int](rt, 2)
		f.Spawn(func(sender *weft.Fiber) error {
			for i := 1; i <= 3; i++ {
				fmt.Printf("sender: before %d\n", i)
				if err := ch.Send(sender, i); err != nil {
					return err
				}
				fmt.Printf("sender: after %d\n", i)
			}
			return nil
		})
		for i := 0; i < 3; i++ {
			v, _ := ch.Recv(f)
			fmt.Printf("main: received %d\n", v)
		}
		return nil
	})
}

// runSleep interleaves two sleeping fibers with different periods.
func runSleep(rt *weft.Runtime) error {
	return rt.Run(func(f *weft.Fiber) error {
		done := weft.NewChannel[string](rt, 0)
		tick := func(name string, period time.Duration, count int) weft.Body {
			return func(f *weft.Fiber) error {
				for i := 1; i <= count; i++ {
					f.Sleep(period)
					fmt.Printf("%s: tick %d\n", name, i)
				}
				return done.Send(f, name)
			}
		}
		f.Spawn(tick("fast", 30*time.Millisecond, 4))
		f.Spawn(tick("slow", 70*time.Millisecond, 2))
		for i := 0; i < 2; i++ {
			name, _ := done.Recv(f)
			fmt.Printf("main: %s finished\n", name)
		}
		return nil
	})
}

// runPipeline chains three stages over unbuffered channels: generate,
// square, print.
func runPipeline(rt *weft.Runtime) error {
	return rt.Run(func(f *weft.Fiber) error {
		nums := weft.NewChannel[int](rt, 0)
		squares := weft.NewChannel[int](rt, 0)
		f.Spawn(func(f *weft.Fiber) error {
			for i := 1; i <= 5; i++ {
				if err := nums.Send(f, i); err != nil {
					return err
				}
			}
			return nums.Close()
		})
		f.Spawn(func(f *weft.Fiber) error {
			for {
				v, ok := nums.Recv(f)
				if !ok {
					return squares.Close()
				}
				if err := squares.Send(f, v*v); err != nil {
					return err
				}
			}
		})
		for {
			v, ok := squares.Recv(f)
			if !ok {
				return nil
			}
			fmt.Printf("pipeline: %d\n", v)
		}
	})
}
