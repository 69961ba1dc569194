package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (E100-E119)

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "The configuration file passed with --config does not exist.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "One or more configuration values are out of range.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Unsupported configuration format",
		Detail:   "Configuration files must end in .json, .yaml or .yml.",
	},

	// Command line (E120-E139)

	"E120": {
		Category: CategoryCLI,
		Message:  "Unknown example model",
		Detail:   "The --example flag names a model that is not built in.",
	},
	"E121": {
		Category: CategoryCLI,
		Message:  "Invalid call parameters",
		Detail:   "Each parameter must be a JSON value.",
	},

	// Server (E140-E159)

	"E140": {
		Category: CategoryServer,
		Message:  "Failed to listen",
		Detail:   "The server could not bind its address.",
	},
	"E141": {
		Category: CategoryServer,
		Message:  "Shutdown incomplete",
		Detail:   "Some connections or listeners did not close before the shutdown timeout.",
	},

	// Calls (E160-E179)

	"E160": {
		Category: CategoryCall,
		Message:  "Request failed",
		Detail:   "The server could not be reached or answered with an HTTP error.",
	},
	"E161": {
		Category: CategoryCall,
		Message:  "Call returned an error",
		Detail:   "The server answered with a JSON-RPC error response.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
