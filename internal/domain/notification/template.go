package notification

import (
	"strconv"
	"strings"
	"time"

	"github.com/MrF1yn/TLE-Codeforces-tracker/pkg/timeutil"
)

// Template - шаблон письма с плейсхолдерами вида {{studentName}}.
type Template struct {
	ID        string
	Name      string
	Subject   string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Defaults for the reminder template.
const (
	DefaultTemplateName    = "Default Reminder Template"
	DefaultReminderSubject = "🔔 Time to get back to coding!"
	WelcomeSubject         = "🎉 Welcome to the Programming Platform!"
)

// DefaultReminderTemplate returns the built-in reminder used when nothing is stored.
func DefaultReminderTemplate() Template {
	return Template{
		Name:    DefaultTemplateName,
		Subject: DefaultReminderSubject,
		Body:    defaultReminderHTML,
	}
}

// WelcomeTemplate returns the welcome email sent to new students.
func WelcomeTemplate() Template {
	return Template{
		Name:    "Welcome",
		Subject: WelcomeSubject,
		Body:    welcomeHTML,
	}
}

// TemplateData - значения для подстановки.
type TemplateData struct {
	StudentName      string
	CurrentRating    int
	MaxRating        int
	LastActivity     *time.Time
	CodeforcesHandle string
	Email            string
}

// Render подставляет значения во все вхождения плейсхолдеров темы и тела.
func (t Template) Render(data TemplateData) (subject, body string) {
	name := data.StudentName
	if strings.TrimSpace(name) == "" {
		name = "Student"
	}
	lastActivity := ""
	if data.LastActivity != nil {
		lastActivity = timeutil.FormatDateStr(*data.LastActivity)
	}

	r := strings.NewReplacer(
		"{{studentName}}", name,
		"{studentName}", name,
		"{{currentRating}}", strconv.Itoa(data.CurrentRating),
		"{{maxRating}}", strconv.Itoa(data.MaxRating),
		"{{lastActivity}}", lastActivity,
		"{{codeforcesHandle}}", data.CodeforcesHandle,
		"{{email}}", data.Email,
	)
	return r.Replace(t.Subject), r.Replace(t.Body)
}

const defaultReminderHTML = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
    .content { padding: 20px; background-color: #f9f9f9; }
    .footer { padding: 20px; text-align: center; color: #666; }
    .button { display: inline-block; padding: 10px 20px; background-color: #4CAF50; color: white; text-decoration: none; border-radius: 5px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Time to Get Back to Coding! 🚀</h1>
    </div>
    <div class="content">
      <h2>Hi {{studentName}}</h2>
      <p>We noticed you haven't submitted any solutions on Codeforces in the last 7 days. Consistent practice is key to improving your programming skills!</p>
      <p>Here are some suggestions to get back on track:</p>
      <ul>
        <li>Start with easier problems to build momentum</li>
        <li>Set a daily goal (even 1 problem per day makes a difference)</li>
        <li>Review your recent submissions and learn from mistakes</li>
        <li>Try problems from different topics to expand your knowledge</li>
      </ul>
      <p>Remember, every expert was once a beginner. Keep pushing forward!</p>
      <div style="text-align: center; margin: 30px 0;">
        <a href="https://codeforces.com/problemset" class="button">Start Solving Problems</a>
      </div>
    </div>
    <div class="footer">
      <p>Happy coding!<br>Your Programming Team</p>
      <p><small>If you don't want to receive these reminders, please contact your instructor.</small></p>
    </div>
  </div>
</body>
</html>
`

const welcomeHTML = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #2196F3; color: white; padding: 20px; text-align: center; }
    .content { padding: 20px; background-color: #f9f9f9; }
    .footer { padding: 20px; text-align: center; color: #666; }
    .button { display: inline-block; padding: 10px 20px; background-color: #2196F3; color: white; text-decoration: none; border-radius: 5px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Welcome to the Programming Platform! 🎉</h1>
    </div>
    <div class="content">
      <h2>Hi {{studentName}}!</h2>
      <p>Welcome to our programming tracking system! We're excited to help you on your coding journey.</p>
      <p>Here's what you can expect:</p>
      <ul>
        <li>Daily sync of your Codeforces submissions</li>
        <li>Detailed progress tracking and analytics</li>
        <li>Friendly reminders to keep you motivated</li>
        <li>Performance insights to help you improve</li>
      </ul>
      <p>Make sure your Codeforces handle is correctly set up so we can track your progress!</p>
      <div style="text-align: center; margin: 30px 0;">
        <a href="https://codeforces.com" class="button">Visit Codeforces</a>
      </div>
    </div>
    <div class="footer">
      <p>Happy coding!<br>Your Programming Team</p>
    </div>
  </div>
</body>
</html>
`
