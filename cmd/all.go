package cmd

import (
	_ "hivekeeper/cmd/decoy"
	_ "hivekeeper/cmd/logs"
	_ "hivekeeper/cmd/metrics"
	_ "hivekeeper/cmd/root"
	_ "hivekeeper/cmd/server"
	_ "hivekeeper/cmd/service"
)
