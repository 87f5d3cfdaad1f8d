// Package files lists, opens and deletes the reports and plate layouts the
// server has saved.
//
// Discovery scans a single directory for files with given extensions.
// Manager maps user-supplied names onto the reports and layouts
// directories, so a name can never address a file outside them.
//
//	m := files.NewManager(paths, logger)
//	reports, err := m.List(files.AreaReports)
//	f, info, err := m.Open(files.AreaReports, "plate1_results.xlsx")
package files
