package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "chiplink"

// MachineID retrieves the ID identifying the machine, hashed for this
// application. It falls back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id: %v", err)
	if id, err = os.Hostname(); err == nil {
		return id
	}
	return appID
}
