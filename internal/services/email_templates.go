package services

const baseEmailStyle = `<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #1f2937; background-color: #f0fdf4; margin: 0; padding: 20px; }
.container { padding: 20px; max-width: 600px; margin: 20px auto; background-color: #ffffff; border: 1px solid #bbf7d0; border-radius: 8px; }
.header { font-size: 24px; font-weight: bold; color: #15803d; margin-bottom: 15px; }
.content { padding: 30px; text-align: center; }
.code { font-size: 36px; font-weight: bold; letter-spacing: 8px; color: #15803d; background-color: #f1f3f5; padding: 15px 20px; border-radius: 5px; display: inline-block; margin: 20px 0; }
.button { display: inline-block; padding: 12px 24px; background-color: #16a34a; color: #ffffff; border-radius: 6px; text-decoration: none; }
.footer { margin-top: 20px; font-size: 12px; color: #6b7280; text-align: center; }
</style>`

// Args: title, message, code, year.
const codeEmailHTML = `<!DOCTYPE html>
<html>
<head>` + baseEmailStyle + `</head>
<body>
  <div class="container">
    <div class="header"><h1>%s</h1></div>
    <div class="content">
      <p>%s</p>
      <div class="code">%s</div>
    </div>
    <div class="footer">© %d Cashback Zone. All rights reserved.</div>
  </div>
</body>
</html>`

// Args: title, message, link, link label, year.
const linkEmailHTML = `<!DOCTYPE html>
<html>
<head>` + baseEmailStyle + `</head>
<body>
  <div class="container">
    <div class="header"><h1>%s</h1></div>
    <div class="content">
      <p>%s</p>
      <a class="button" href="%s">%s</a>
    </div>
    <div class="footer">© %d Cashback Zone. All rights reserved.</div>
  </div>
</body>
</html>`

// Args: title, message, year.
const noticeEmailHTML = `<!DOCTYPE html>
<html>
<head>` + baseEmailStyle + `</head>
<body>
  <div class="container">
    <div class="header"><h1>%s</h1></div>
    <div class="content"><p>%s</p></div>
    <div class="footer">© %d Cashback Zone. All rights reserved.</div>
  </div>
</body>
</html>`
