package types

type ServiceManagerType string

var ServiceManagerTypeSystemd = ServiceManagerType("systemd")
var ServiceManagerTypeDryRun = ServiceManagerType("dryrun")
