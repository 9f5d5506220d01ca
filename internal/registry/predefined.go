package registry

import "github.com/t77yq/macroflow/internal/model"

// predefinedMacros are bundled at startup, immutable, and never persisted.
// Some bind a direct task; the rest carry a command translated at run time.
var predefinedMacros = []*model.Macro{
	{
		Name:        "Send Email",
		Description: "Send the daily update email to the team",
		Task: &model.Task{
			Action: model.ActionSendEmail,
			Parameters: map[string]string{
				"to":      "team@example.com",
				"subject": "Daily Update",
				"body":    "Hello team, here's today's update.",
			},
		},
		Origin: model.MacroOriginPredefined,
	},
	{
		Name:        "Create Report",
		Description: "Generate and save the daily report",
		Task: &model.Task{
			Action: model.ActionCreateFile,
			Parameters: map[string]string{
				"filename": "daily-report.txt",
				"content":  "Daily report",
			},
		},
		Origin: model.MacroOriginPredefined,
	},
	{
		Name:        "Send Email to Team",
		Description: "Email the team",
		Command:     "Send email to team",
		Origin:      model.MacroOriginPredefined,
	},
	{
		Name:        "Create Daily Report",
		Description: "Create the daily report file",
		Command:     "Create daily report",
		Origin:      model.MacroOriginPredefined,
	},
	{
		Name:        "Backup Files",
		Description: "Back up working files",
		Command:     "Backup files",
		Origin:      model.MacroOriginPredefined,
	},
}
