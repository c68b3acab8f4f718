package i18n

// messages maps each UI string to its zh-Hans text. The key is the en-US
// text unless en is set.
var messages = []struct {
	key, zh, en string
}{
	// Layout and navigation.
	{"Toupiao", "投票", ""},
	{"Home", "首页", ""},
	{"Polls", "投票", ""},
	{"New poll", "发起投票", ""},
	{"My polls", "我的投票", ""},
	{"Admin", "管理", ""},
	{"Administration", "管理后台", ""},
	{"Hello %s!", "你好 %s！", ""},
	{"Login", "登录", ""},
	{"Logout", "退出", ""},
	{"Log out", "退出", ""},
	{"Register", "注册", ""},
	{"Manage", "管理账户", ""},
	{"Welcome", "欢迎", ""},
	{"Back", "返回", ""},
	{"Previous", "上一页", ""},
	{"Next", "下一页", ""},
	{"Submit", "提交", ""},
	{"Yes", "是", ""},
	{"No", "否", ""},
	{"Error", "错误", ""},
	{"Error.", "错误。", ""},
	{"An error occurred while processing your request.", "处理您的请求时出错。", ""},
	{"Request ID:", "请求 ID：", ""},
	{"Access denied", "拒绝访问", ""},
	{"You do not have access to this resource.", "您无权访问此资源。", ""},

	// Form fields and validation.
	{"Email", "邮箱", ""},
	{"Password", "密码", ""},
	{"Confirm password", "确认密码", ""},
	{"User name", "用户名", ""},
	{"Remember me?", "记住我？", ""},
	{"The %s field is required.", "%s 字段是必需的。", ""},
	{"The field %s must be a string with a maximum length of %d.", "字段 %s 的长度不能超过 %d 个字符。", ""},
	{"Please enter your email", "请输入邮箱", ""},
	{"Please enter a valid email", "请输入有效的邮箱", ""},
	{"Enter your email.", "请输入您的邮箱。", ""},
	{"The password and confirmation password do not match.", "密码和确认密码不匹配。", ""},
	{"User name '%s' is already taken.", "用户名“%s”已被占用。", ""},
	{"User name '%s' is invalid.", "用户名“%s”无效。", ""},
	{"Passwords must be at least %d characters.", "密码长度至少为 %d 个字符。", ""},
	{"Passwords must have at least one non alphanumeric character.", "密码必须至少包含一个非字母数字字符。", ""},
	{"Passwords must have at least one digit ('0'-'9').", "密码必须至少包含一个数字（'0'-'9'）。", ""},
	{"Passwords must have at least one lowercase ('a'-'z').", "密码必须至少包含一个小写字母（'a'-'z'）。", ""},
	{"Passwords must have at least one uppercase ('A'-'Z').", "密码必须至少包含一个大写字母（'A'-'Z'）。", ""},
	{"Passwords must use at least %d different characters.", "密码必须至少使用 %d 个不同的字符。", ""},

	// Login.
	{"Log in", "登录", ""},
	{"Use a local account to log in.", "使用本地账户登录。", ""},
	{"Use another service to log in.", "使用其他服务登录。", ""},
	{"Forgot your password?", "忘记密码？", ""},
	{"Register as a new user", "注册新用户", ""},
	{"Resend email confirmation", "重新发送确认邮件", ""},
	{"Email sent! Please confirm before logging in", "邮件已发送！请确认后可以登录", ""},
	{"Invalid account or password!", "账号或者密码错误！", ""},
	{"This email is not registered yet. Create an account to continue.", "该邮箱尚未注册，请先创建账户。", ""},
	{"Locked out", "账户已锁定", ""},
	{"This account has been locked out, please try again later.", "此账户已被锁定，请稍后再试。", ""},
	{"You have successfully logged out of the application.", "您已成功退出。", ""},

	// Confirmation and reset mails.
	{"Confirm your email", "确认你的电子邮件", ""},
	{"Please confirm your account", "请确认您的帐户", ""},
	{"Click here", "点击这里", ""},
	{"Reset password", "重置密码", ""},
	{"Please reset your password", "请重置您的密码", ""},

	// Registration and email confirmation.
	{"Create a new account.", "创建新账户。", ""},
	{"Register confirmation", "注册确认", ""},
	{"A confirmation link was sent to %s.", "确认链接已发送至 %s。", ""},
	{"Please check your email to confirm your account.", "请查收邮件以确认您的账户。", ""},
	{"Confirm email", "确认邮箱", ""},
	{"Thank you for confirming your email.", "感谢您确认邮箱。", ""},
	{"Error confirming your email.", "确认邮箱时出错。", ""},
	{"Click here to log in.", "点击这里登录。", ""},
	{"Resend", "重新发送", ""},
	{"Verification email sent. Please check your email.", "验证邮件已发送，请查收。", ""},

	// Password reset.
	{"Forgot password confirmation", "忘记密码确认", ""},
	{"Please check your email to reset your password.", "请查收邮件以重置密码。", ""},
	{"Reset your password.", "重置您的密码。", ""},
	{"Reset", "重置", ""},
	{"Invalid token.", "令牌无效。", ""},
	{"Reset password confirmation", "重置密码确认", ""},
	{"Your password has been reset.", "您的密码已重置。", ""},

	// Two-factor sign-in.
	{"Two-factor authentication", "双重身份验证", ""},
	{"Your login is protected with an authenticator app. Enter your authenticator code below.", "您的登录受身份验证器应用保护，请在下方输入验证码。", ""},
	{"Authenticator code", "身份验证器代码", ""},
	{"Remember this machine", "记住此设备", ""},
	{"Don't have access to your authenticator device?", "无法使用身份验证器设备？", ""},
	{"Log in with a recovery code", "使用恢复码登录", ""},
	{"Recovery code verification", "恢复码验证", ""},
	{"You have requested to log in with a recovery code. This login will not be remembered until you provide an authenticator app code at log in or disable 2FA and log in again.", "您正在使用恢复码登录。在您登录时提供身份验证器代码或停用 2FA 并重新登录之前，此次登录不会被记住。", ""},
	{"Recovery code", "恢复码", ""},
	{"Invalid authenticator code.", "身份验证器代码无效。", ""},
	{"Invalid recovery code entered.", "输入的恢复码无效。", ""},
	{"Unable to load two-factor authentication user.", "无法加载双重身份验证用户。", ""},

	// Two-factor management.
	{"Two-factor authentication (2FA)", "双重身份验证（2FA）", ""},
	{"Two-factor authentication is not enabled.", "未启用双重身份验证。", ""},
	{"Authenticator app", "身份验证器应用", ""},
	{"Add authenticator app", "添加身份验证器应用", ""},
	{"Set up authenticator app", "设置身份验证器应用", ""},
	{"Reset authenticator app", "重置身份验证器应用", ""},
	{"Configure authenticator app", "配置身份验证器应用", ""},
	{"To use an authenticator app go through the following steps:", "要使用身份验证器应用，请完成以下步骤：", ""},
	{"Download a two-factor authenticator app.", "下载双重身份验证器应用。", ""},
	{"Scan the QR code or enter this key into your two factor authenticator app. Spaces and casing do not matter:", "扫描二维码或在身份验证器应用中输入此密钥，空格和大小写无关紧要：", ""},
	{"Once you have scanned the QR code or input the key above, your two factor authentication app will provide you with a unique code. Enter the code in the confirmation box below.", "扫描二维码或输入上述密钥后，身份验证器应用会提供一个唯一代码，请在下方确认框中输入该代码。", ""},
	{"Verification code", "验证码", ""},
	{"Verify", "验证", ""},
	{"Verification code is invalid.", "验证码无效。", ""},
	{"Your authenticator app has been verified.", "您的身份验证器应用已通过验证。", ""},
	{"Your authenticator app key has been reset, you will need to configure your authenticator app using the new key.", "您的身份验证器密钥已重置，需要使用新密钥重新配置身份验证器应用。", ""},
	{"Disable 2FA", "停用 2FA", ""},
	{"2fa has been disabled. You can reenable 2fa when you setup an authenticator app", "2FA 已停用。设置身份验证器应用后可以重新启用。", ""},
	{"Forget this browser", "忘记此浏览器", ""},
	{"The current browser has been forgotten. When you login again from this browser you will be prompted for your 2fa code.", "已忘记当前浏览器。再次从此浏览器登录时需要输入 2FA 代码。", ""},
	{"Recovery codes", "恢复码", ""},
	{"Reset recovery codes", "重置恢复码", ""},
	{"Put these codes in a safe place.", "请将这些恢复码存放在安全的地方。", ""},
	{"If you lose your device and don't have the recovery codes you will lose access to your account.", "如果丢失设备且没有恢复码，您将无法访问账户。", ""},
	{"You have generated new recovery codes.", "您已生成新的恢复码。", ""},
	{"Cannot generate recovery codes as two-factor authentication is not enabled.", "未启用双重身份验证，无法生成恢复码。", ""},
	{"You have no recovery codes left.", "您已没有剩余的恢复码。", ""},
	{"You must generate a new set of recovery codes before you can log in with a recovery code.", "您必须先生成一组新的恢复码，才能使用恢复码登录。", ""},
	{"You have %d recovery codes left.", "您还剩 %d 个恢复码。", ""},
	{"You should generate a new set of recovery codes.", "您应该生成一组新的恢复码。", ""},

	// Polls.
	{"Create a poll, share it and watch the votes come in.", "发起投票，分享出去，看看大家怎么选。", ""},
	{"No open polls yet.", "还没有进行中的投票。", ""},
	{"No polls yet.", "还没有投票。", ""},
	{"Poll", "投票", ""},
	{"Title", "标题", ""},
	{"Description", "描述", ""},
	{"Options (one per line)", "选项（每行一个）", ""},
	{"Option", "选项", ""},
	{"Choices per voter", "每人可选数量", ""},
	{"Closes at (optional)", "截止时间（可选）", ""},
	{"Closes %s", "%s 截止", ""},
	{"Create", "创建", ""},
	{"Choose up to %d options.", "最多选择 %d 项。", ""},
	{"Vote", "投票", ""},
	{"Votes", "票数", ""},
	{"Voters", "投票人数", ""},
	{"%d voters", "%d 人投票", ""},
	{"Results", "结果", ""},
	{"Open", "进行中", ""},
	{"Closed", "已结束", ""},
	{"Close poll", "结束投票", ""},
	{"Created", "创建时间", ""},
	{"Status", "状态", ""},
	{"Log in to vote.", "登录后投票。", ""},
	{"Poll created.", "投票已创建。", ""},
	{"Poll closed.", "投票已结束。", ""},
	{"Poll deleted.", "投票已删除。", ""},
	{"Thank you for voting.", "感谢您的投票。", ""},
	{"This poll is closed.", "此投票已结束。", ""},
	{"You have already voted in this poll.", "您已经投过票了。", ""},
	{"Please choose between 1 and %d options.", "请选择 1 到 %d 个选项。", ""},
	{"Please confirm your email before voting.", "请先确认邮箱再投票。", ""},
	{"A poll needs between %d and %d options.", "投票需要 %d 到 %d 个选项。", ""},
	{"Each option can be at most %d characters.", "每个选项最多 %d 个字符。", ""},
	{"Options must be unique.", "选项不能重复。", ""},
	{"Choices per voter must be between 1 and the number of options.", "每人可选数量必须在 1 和选项数量之间。", ""},
	{"The closing time is not a valid date.", "截止时间不是有效的日期。", ""},
	{"The closing time must be in the future.", "截止时间必须晚于当前时间。", ""},
	{"The poll could not be saved.", "无法保存投票。", ""},

	// Administration.
	{"Users", "用户", ""},
	{"Open polls", "进行中的投票", ""},
	{"Manage users", "管理用户", ""},
	{"Manage polls", "管理投票", ""},
	{"Confirmed", "已确认", ""},
	{"Roles", "角色", ""},
	{"Active", "正常", ""},
	{"Locked", "已锁定", ""},
	{"Lock", "锁定", ""},
	{"Unlock", "解锁", ""},
	{"Grant admin", "设为管理员", ""},
	{"Revoke admin", "取消管理员", ""},
	{"Delete", "删除", ""},
	{"You cannot change your own account here.", "不能在此修改您自己的账户。", ""},
	{"User %s has been locked.", "用户 %s 已被锁定。", ""},
	{"User %s has been unlocked.", "用户 %s 已解锁。", ""},
	{"User %s is now an administrator.", "用户 %s 现在是管理员。", ""},
	{"User %s is no longer an administrator.", "用户 %s 不再是管理员。", ""},
}
