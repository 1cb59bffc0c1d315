package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"koo/internal/modules/ai/domain/rag"
	"koo/pkg/zlog"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Serve 以 stdio 或 sse 方式提供服务，阻塞直到 ctx 结束或传输层出错
func Serve(ctx context.Context, s *server.MCPServer, transport, addr string) error {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", "stdio":
		return server.ServeStdio(s)
	case "sse":
		sse := server.NewSSEServer(s)
		errCh := make(chan error, 1)
		go func() {
			zlog.Info("mcp sse server listening", zap.String("addr", addr))
			errCh <- sse.Start(addr)
		}()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return sse.Shutdown(shutdownCtx)
		}
	}
	return rag.Validationf("unsupported mcp transport %q", transport)
}
