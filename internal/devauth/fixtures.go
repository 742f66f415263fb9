package devauth

// DevelopmentAccounts are seeded by cmd/devauth and the test server: one
// account per role, a locked account and one without a role.
var DevelopmentAccounts = []SeedAccount{
	{Name: "Ana Administradora", Email: "admin@cursos.test", Password: "admin12345", Role: "administrador"},
	{Name: "Tomás Tutor", Email: "tutor@cursos.test", Password: "tutor12345", Role: "tutor"},
	{Name: "Irene Instructora", Email: "instructor@cursos.test", Password: "instructor12345", Role: "instructor"},
	{Name: "Bruno Bloqueado", Email: "bloqueado@cursos.test", Password: "bloqueado123", Role: "tutor", Locked: true},
	{Name: "Sara Sinrol", Email: "sinrol@cursos.test", Password: "sinrol12345"},
}
