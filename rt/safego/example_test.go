package safego_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evan-idocoding/zsup/rt/safego"
)

func ExampleGo_finally() {
	done := make(chan struct{})
	safego.Go(context.Background(), func(context.Context) {
		fmt.Println("serving")
	}, safego.WithName("ops server"), safego.WithFinally(func() { close(done) }))

	<-done
	// Output:
	// serving
}

func ExampleRunErr_attrs() {
	safego.RunErr(context.Background(), func(context.Context) error {
		return errors.New("disk full")
	}, safego.WithName("flush"),
		safego.WithAttrs(slog.Int("run", 3)),
		safego.WithErrorHandler(func(_ context.Context, info safego.ErrorInfo) {
			fmt.Printf("%s %v: %v\n", info.Name, info.Attrs[0], info.Err)
		}),
	)

	// Output:
	// flush run=3: disk full
}

func ExampleRun_recoverOnly() {
	safego.Run(context.Background(), func(context.Context) {
		panic("unit bug")
	}, safego.WithPanicPolicy(safego.RecoverOnly))

	fmt.Println("supervisor still alive")
	// Output:
	// supervisor still alive
}
