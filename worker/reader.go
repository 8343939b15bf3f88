package worker

import "net"

// StartReader launches the lightweight per-connection goroutine of
// spec §9's redesign note: it owns no processor state, it only copies
// bytes off the socket and hands them to the Worker's event channel.
func StartReader(w *Worker, c *Conn, netConn net.Conn) {
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := netConn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				w.PushEvent(c, data, nil)
			}
			if err != nil {
				w.PushEvent(c, nil, err)
				return
			}
		}
	}()
}
