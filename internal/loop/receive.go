package loop

import (
	"context"

	"github.com/dustnet/dustnet/internal/transport"
	"github.com/juju/errors"
)

// Receive pumps frames from tr into loop tasks until loop stop or tr closed.
func (self *Loop) Receive(tr transport.Transport, handle func(transport.Frame)) bool {
	return self.Go(func(stopch <-chan struct{}) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-stopch:
			case <-ctx.Done():
			}
			cancel()
		}()
		for {
			f, err := tr.Recv(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Cause(err) == transport.ErrClosed {
					return
				}
				self.log.Error(errors.Annotate(err, "loop receive"))
				continue
			}
			if self.Post(func() { handle(f) }) != nil {
				return
			}
		}
	})
}
