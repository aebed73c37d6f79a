package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/mcpserver"
	"github.com/teranos/yanantin/logger"
)

// McpCmd serves read queries to MCP clients on stdio
var McpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve store queries as MCP tools on stdin/stdout",
	Long: `mcp - Model Context Protocol server

Every named query becomes an apacheta_<name> tool, alongside tools to list
tensors, fetch a tensor, strand or entity, and count records. The server is
read-only. Logs go to stderr so stdout stays a clean protocol stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(_ *am.Config, store apacheta.TensorStore) error {
			return mcpserver.New(store, logger.Logger).Serve()
		})
	},
}
