package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = ClientSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// ClientSemVer is the current version of the market client.
	// It's the Semantic Version of the software.
	ClientSemVer = "0.3.0"

	// ContractInterface is the version of the marketplace contract call
	// surface this client speaks.
	ContractInterface = "1"
)

// Info is the version report printed by the version command.
type Info struct {
	Client   string `json:"client"`
	Commit   string `json:"commit,omitempty"`
	Contract string `json:"contract_interface"`
}

// Current returns the Info of this build.
func Current() Info {
	return Info{
		Client:   Version,
		Commit:   GitCommit,
		Contract: ContractInterface,
	}
}
