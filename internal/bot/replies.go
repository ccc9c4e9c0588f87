package bot

// Canned reply copy. Menu option handling compares raw input against the
// option values, so the copy here must stay in sync with the dispatch in
// engine.go.
const (
	mainMenu = "How can I help you today?\n\n" +
		"1. View Loan Statement\n" +
		"2. Check Repayment Schedule\n" +
		"3. View Account Summary\n" +
		"4. View Notifications\n\n" +
		"Type 'help' for assistance or 'exit' to end session."

	welcomeCopy = "Welcome to Wisrod Investments! 👋\n\n" +
		"Thanks for chatting with me. I am Wisrod Investment's 24/7 banking assistant.\n\n"

	accountPrompt = "Please provide your Account ID to proceed with your account statement."

	invalidAccountCopy = "The Account ID you have provided does not match any record with Wisrod Investment.\n\n" +
		"Kindly check and provide the account ID again"

	invalidSelectionPrefix = "Invalid selection. "

	goodbyeCopy = "Thank you for using our service. Goodbye!"

	fallbackAuthenticated = "I'm not quite sure I understand. Could you please rephrase that?\n\n" + mainMenu

	fallbackAnonymous = "I'm not quite sure I understand. You can say 'hi' to see what I can do, " +
		"enter your Account ID to link your account, or type 'agent' to talk to a person."

	agentConnectedCopy = "I'm connecting you with a human agent who can better assist you."

	agentsBusyCopy = "All our agents are currently busy. Please wait a moment."

	noNotificationsCopy = "You have no new notifications."

	lookupFailedCopy = "Sorry, I couldn't reach our account service just now. Please try again in a moment."
)
